// Agent spawning: seeds the initial population and creates offspring.
package agents

import (
	"github.com/talgya/toolsim/internal/entropy"
	"github.com/talgya/toolsim/internal/world"
)

// Spawner creates agents and hands out ids from a single monotonic sequence
// shared by monkeys and resources.
type Spawner struct {
	rng    *entropy.Source
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng. The first id issued is 1.
func NewSpawner(rng *entropy.Source) *Spawner {
	return &Spawner{
		rng:    rng,
		nextID: 1,
	}
}

// NextID issues a fresh id.
func (s *Spawner) NextID() AgentID {
	id := s.nextID
	s.nextID++
	return id
}

// SpawnNaive creates a seed monkey with a random hair pattern and a starting
// age drawn from [0, lifeSpan] so the population does not die off in one wave.
func (s *Spawner) SpawnNaive(position world.Coord, lifeSpan int) *Monkey {
	m := newMonkey(s.NextID(), position)
	m.Hair = HairPattern(s.rng.IntRange(1, 2))
	if lifeSpan > 0 {
		m.Age = s.rng.IntRange(0, lifeSpan)
	}
	return m
}

// SpawnFounder creates a seed monkey that already uses tools.
func (s *Spawner) SpawnFounder(position world.Coord) *Monkey {
	m := newMonkey(s.NextID(), position)
	m.ToolUser = true
	m.ToolTrait = true
	m.Hair = HairPatterned
	m.Learned = LearnedFounder
	return m
}

// SpawnChild creates the offspring of mother and father at the mother's cell.
func (s *Spawner) SpawnChild(mother, father *Monkey, hair HairPattern) *Monkey {
	m := newMonkey(s.NextID(), mother.Position)
	m.Hair = hair
	m.ToolTrait = InheritTrait(hair, mother, father)
	m.MotherID = mother.ID
	m.MotherToolUser = mother.ToolUser
	return m
}

// SpawnResource creates a tool resource at position.
func (s *Spawner) SpawnResource(position world.Coord) *ToolResource {
	return &ToolResource{ID: s.NextID(), Position: position}
}

func newMonkey(id AgentID, position world.Coord) *Monkey {
	return &Monkey{
		ID:                 id,
		Position:           position,
		Alive:              true,
		MotherID:           UnknownMother,
		AgeLearned:         -1,
		TickLearned:        -1,
		TransmissionMethod: MethodNaive,
	}
}
