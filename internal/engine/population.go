// Population bookkeeping for births and deaths.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/toolsim/internal/agents"
)

// census counts live tool users and trait carriers.
func (s *Simulation) census() (users, carriers int) {
	for _, m := range s.monkeys {
		if m.ToolUser {
			users++
		}
		if m.ToolTrait {
			carriers++
		}
	}
	return users, carriers
}

// addMonkey registers a monkey in the index, on the grid and in the schedule.
func (s *Simulation) addMonkey(m *agents.Monkey) error {
	if _, ok := s.monkeys[m.ID]; ok {
		return fmt.Errorf("add monkey %d: %w", m.ID, agents.ErrDuplicateMonkey)
	}
	if err := s.grid.Place(m.ID, m.Position); err != nil {
		return fmt.Errorf("add monkey %d: %w", m.ID, err)
	}
	if err := s.schedule.Add(m); err != nil {
		_ = s.grid.Remove(m.ID)
		return fmt.Errorf("add monkey %d: %w", m.ID, err)
	}
	s.monkeys[m.ID] = m
	return nil
}

// Birth implements agents.World: the child joins the population and an
// ancestry edge mother → child is logged.
func (s *Simulation) Birth(child *agents.Monkey) error {
	if err := s.addMonkey(child); err != nil {
		return err
	}
	s.ancestry = append(s.ancestry, Edge{Source: child.MotherID, Target: child.ID})
	s.Stats.Births++
	slog.Debug("birth", "tick", s.clock, "id", child.ID, "mother", child.MotherID, "hair", child.Hair, "trait", child.ToolTrait)
	return nil
}

// Death implements agents.World: the terminal snapshot is recorded and the
// monkey leaves the grid, the schedule and the index.
func (s *Simulation) Death(m *agents.Monkey) error {
	if _, ok := s.monkeys[m.ID]; !ok {
		return fmt.Errorf("death of monkey %d: not in the live population", m.ID)
	}
	s.nodes = append(s.nodes, snapshotNode(s.RunID, m))
	if err := s.grid.Remove(m.ID); err != nil {
		return fmt.Errorf("death of monkey %d: %w", m.ID, err)
	}
	s.schedule.Remove(m.ID)
	delete(s.monkeys, m.ID)
	s.Stats.Deaths++
	slog.Debug("death", "tick", s.clock, "id", m.ID, "age", m.Age, "tool_user", m.ToolUser)
	return nil
}
