package engine

import (
	"fmt"

	"github.com/talgya/toolsim/internal/agents"
)

// Shuffler permutes a sequence in place.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Scheduler holds the live actor set and activates it in random order.
type Scheduler struct {
	actors map[agents.AgentID]agents.Actor
	order  []agents.AgentID       // Membership, compacted by swap-remove
	index  map[agents.AgentID]int // id → position in order
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		actors: make(map[agents.AgentID]agents.Actor),
		index:  make(map[agents.AgentID]int),
	}
}

// Add registers an actor. Each id may be registered once.
func (s *Scheduler) Add(a agents.Actor) error {
	id := a.Ident()
	if _, ok := s.actors[id]; ok {
		return fmt.Errorf("schedule %d: %w", id, ErrDuplicateActor)
	}
	s.actors[id] = a
	s.index[id] = len(s.order)
	s.order = append(s.order, id)
	return nil
}

// Remove unregisters an actor and reports whether it was present.
func (s *Scheduler) Remove(id agents.AgentID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.order) - 1
	moved := s.order[last]
	s.order[i] = moved
	s.index[moved] = i
	s.order = s.order[:last]
	delete(s.index, id)
	delete(s.actors, id)
	return true
}

// Contains reports whether id is registered.
func (s *Scheduler) Contains(id agents.AgentID) bool {
	_, ok := s.actors[id]
	return ok
}

// Len returns the number of registered actors.
func (s *Scheduler) Len() int {
	return len(s.order)
}

// Tick visits every actor registered at the start of the call exactly once,
// in a fresh uniformly random order. Actors added during the tick wait for
// the next one; actors removed before their turn are skipped.
func (s *Scheduler) Tick(rng Shuffler, fn func(agents.Actor) error) error {
	snapshot := make([]agents.AgentID, len(s.order))
	copy(snapshot, s.order)
	rng.Shuffle(len(snapshot), func(i, j int) {
		snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
	})

	for _, id := range snapshot {
		a, ok := s.actors[id]
		if !ok {
			continue
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}
