package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/toolsim/internal/agents"
)

type countingActor struct {
	id    agents.AgentID
	calls int
}

func (a *countingActor) Ident() agents.AgentID { return a.id }

func (a *countingActor) Step(agents.World) error {
	a.calls++
	return nil
}

func newTestScheduler(t *testing.T, n int) (*Scheduler, []*countingActor) {
	t.Helper()
	s := NewScheduler()
	actors := make([]*countingActor, n)
	for i := range actors {
		actors[i] = &countingActor{id: agents.AgentID(i + 1)}
		if err := s.Add(actors[i]); err != nil {
			t.Fatalf("add %d: %v", i+1, err)
		}
	}
	return s, actors
}

func TestSchedulerVisitsEachActorOnce(t *testing.T) {
	s, actors := newTestScheduler(t, 50)
	rng := rand.New(rand.NewSource(1))

	for tick := 0; tick < 3; tick++ {
		err := s.Tick(rng, func(a agents.Actor) error { return a.Step(nil) })
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	for _, a := range actors {
		if a.calls != 3 {
			t.Errorf("actor %d stepped %d times, want 3", a.id, a.calls)
		}
	}
}

func TestSchedulerOrderChangesAcrossTicks(t *testing.T) {
	s, _ := newTestScheduler(t, 20)
	rng := rand.New(rand.NewSource(7))

	record := func() []agents.AgentID {
		var order []agents.AgentID
		_ = s.Tick(rng, func(a agents.Actor) error {
			order = append(order, a.Ident())
			return nil
		})
		return order
	}
	first, second := record(), record()
	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("two consecutive ticks used the same activation order")
	}
}

func TestSchedulerExcludesActorsAddedMidTick(t *testing.T) {
	s, _ := newTestScheduler(t, 5)
	rng := rand.New(rand.NewSource(2))

	next := agents.AgentID(100)
	var added []*countingActor
	visited := 0
	err := s.Tick(rng, func(a agents.Actor) error {
		visited++
		child := &countingActor{id: next}
		next++
		added = append(added, child)
		return s.Add(child)
	})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if visited != 5 {
		t.Errorf("visited %d actors, want 5", visited)
	}
	if s.Len() != 10 {
		t.Errorf("Len = %d, want 10", s.Len())
	}
	for _, c := range added {
		if c.calls != 0 {
			t.Errorf("actor %d added mid-tick was stepped", c.id)
		}
	}
}

func TestSchedulerSkipsActorsRemovedMidTick(t *testing.T) {
	s, actors := newTestScheduler(t, 10)
	rng := rand.New(rand.NewSource(3))

	// The first actor visited removes every other actor.
	err := s.Tick(rng, func(a agents.Actor) error {
		if err := a.Step(nil); err != nil {
			return err
		}
		for _, other := range actors {
			if other.id != a.Ident() {
				s.Remove(other.id)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}

	total := 0
	for _, a := range actors {
		total += a.calls
	}
	if total != 1 {
		t.Errorf("%d actors stepped, want 1", total)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSchedulerRejectsDuplicates(t *testing.T) {
	s, actors := newTestScheduler(t, 2)
	err := s.Add(actors[0])
	if !errors.Is(err, ErrDuplicateActor) {
		t.Fatalf("Add duplicate: got %v, want ErrDuplicateActor", err)
	}
}

func TestSchedulerRemove(t *testing.T) {
	s, _ := newTestScheduler(t, 3)

	if !s.Remove(1) {
		t.Fatal("Remove(1) = false, want true")
	}
	if s.Remove(1) {
		t.Error("second Remove(1) = true, want false")
	}
	if s.Contains(1) {
		t.Error("Contains(1) after removal")
	}
	if !s.Contains(2) || !s.Contains(3) {
		t.Error("remaining actors lost after swap-remove")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestSchedulerStopsOnError(t *testing.T) {
	s, _ := newTestScheduler(t, 10)
	rng := rand.New(rand.NewSource(4))
	boom := errors.New("boom")

	visited := 0
	err := s.Tick(rng, func(agents.Actor) error {
		visited++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tick: got %v, want boom", err)
	}
	if visited != 1 {
		t.Errorf("visited %d actors after error, want 1", visited)
	}
}
