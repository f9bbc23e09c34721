package agents

import (
	"testing"

	"github.com/talgya/toolsim/internal/entropy"
	"github.com/talgya/toolsim/internal/world"
)

// fakeWorld is a minimal World backed by a real grid.
type fakeWorld struct {
	grid     *world.Grid[AgentID]
	rng      *entropy.Source
	spawner  *Spawner
	rules    Rules
	monkeys  map[AgentID]*Monkey
	capacity int
	clock    int
	sites    []world.Coord

	encounters [][2]AgentID
	births     []*Monkey
	deaths     []*Monkey
}

func newFakeWorld(t *testing.T, width, height int, seed int64, rules Rules) *fakeWorld {
	t.Helper()
	g, err := world.NewGrid[AgentID](width, height)
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	rng := entropy.NewSource(seed)
	return &fakeWorld{
		grid:     g,
		rng:      rng,
		spawner:  NewSpawner(rng),
		rules:    rules,
		monkeys:  make(map[AgentID]*Monkey),
		capacity: 1 << 30,
	}
}

func (f *fakeWorld) add(t *testing.T, m *Monkey) *Monkey {
	t.Helper()
	if err := f.grid.Place(m.ID, m.Position); err != nil {
		t.Fatalf("place monkey %d: %v", m.ID, err)
	}
	f.monkeys[m.ID] = m
	return m
}

func (f *fakeWorld) Grid() *world.Grid[AgentID] { return f.grid }
func (f *fakeWorld) Rand() *entropy.Source      { return f.rng }
func (f *fakeWorld) Spawner() *Spawner          { return f.spawner }
func (f *fakeWorld) Rules() Rules               { return f.rules }
func (f *fakeWorld) Population() int            { return len(f.monkeys) }
func (f *fakeWorld) Capacity() int              { return f.capacity }
func (f *fakeWorld) Clock() int                 { return f.clock }

func (f *fakeWorld) Monkey(id AgentID) (*Monkey, bool) {
	m, ok := f.monkeys[id]
	return m, ok
}

func (f *fakeWorld) NearestResource(c world.Coord) (world.Coord, bool) {
	if len(f.sites) == 0 {
		return world.Coord{}, false
	}
	best := f.sites[0]
	for _, s := range f.sites[1:] {
		if world.Distance(s, c) < world.Distance(best, c) {
			best = s
		}
	}
	return best, true
}

func (f *fakeWorld) Encounter(partner, actor AgentID) {
	f.encounters = append(f.encounters, [2]AgentID{partner, actor})
}

func (f *fakeWorld) Birth(child *Monkey) error {
	if err := f.grid.Place(child.ID, child.Position); err != nil {
		return err
	}
	f.monkeys[child.ID] = child
	f.births = append(f.births, child)
	return nil
}

func (f *fakeWorld) Death(m *Monkey) error {
	if err := f.grid.Remove(m.ID); err != nil {
		return err
	}
	delete(f.monkeys, m.ID)
	f.deaths = append(f.deaths, m)
	return nil
}
