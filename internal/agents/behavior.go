// Monkey behavior: the per-tick state machine.
// Every tick a live monkey moves, looks for company, may reproduce, may learn
// tool use, then ages and may die, always in that order.
package agents

import (
	"fmt"

	"github.com/talgya/toolsim/internal/world"
)

// Step implements Actor.
func (m *Monkey) Step(w World) error {
	if !m.Alive {
		return nil
	}

	if err := m.Move(w); err != nil {
		return fmt.Errorf("monkey %d move: %w", m.ID, err)
	}
	m.observeResources(w)

	partner := m.Socialize(w)
	if partner != nil && w.Population() < w.Capacity() {
		if err := m.Reproduce(w, partner); err != nil {
			return fmt.Errorf("monkey %d reproduce: %w", m.ID, err)
		}
	}

	if err := m.Learn(w, partner); err != nil {
		return fmt.Errorf("monkey %d learn: %w", m.ID, err)
	}

	if _, err := m.Grow(w); err != nil {
		return fmt.Errorf("monkey %d grow: %w", m.ID, err)
	}
	return nil
}

// Move steps the monkey to one of its neighboring cells.
// Under resource attraction it first tries to close in on the nearest
// resource; otherwise young monkeys tend to follow their mother and everyone
// else wanders at random.
func (m *Monkey) Move(w World) error {
	g := w.Grid()
	steps := g.Neighbors(m.Position)
	if len(steps) == 0 {
		return nil
	}

	next := m.kinStep(w, steps)
	if rules := w.Rules(); rules.Mode == ModeResourceAttraction && rules.Attraction > 0 {
		if site, ok := w.NearestResource(m.Position); ok && w.Rand().Bernoulli(rules.Attraction/100) {
			next = steps[nearestTo(steps, site)]
		}
	}

	if err := g.Move(m.ID, next); err != nil {
		return err
	}
	m.Position = next
	return nil
}

// kinStep applies the mother-following rule. An unknown or vanished mother
// means a uniformly random step.
func (m *Monkey) kinStep(w World, steps []world.Coord) world.Coord {
	rng := w.Rand()
	if m.MotherID == UnknownMother {
		return steps[rng.Intn(len(steps))]
	}
	mother, ok := w.Monkey(m.MotherID)
	if !ok {
		return steps[rng.Intn(len(steps))]
	}

	closest := nearestTo(steps, mother.Position)
	if rng.Bernoulli(FollowProbability(m.Age)) {
		return steps[closest]
	}
	return steps[rng.Intn(len(steps))]
}

// nearestTo returns the index of the step closest to target. Ties go to the
// earliest step.
func nearestTo(steps []world.Coord, target world.Coord) int {
	best := 0
	bestDist := world.Distance(steps[0], target)
	for i := 1; i < len(steps); i++ {
		if d := world.Distance(steps[i], target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Socialize picks one other monkey sharing the cell, logs the encounter and
// returns the partner. Returns nil when the monkey is alone.
func (m *Monkey) Socialize(w World) *Monkey {
	var friends []*Monkey
	for _, id := range w.Grid().Occupants(m.Position) {
		if id == m.ID {
			continue
		}
		if f, ok := w.Monkey(id); ok {
			friends = append(friends, f)
		}
	}
	if len(friends) == 0 {
		return nil
	}

	friend := friends[w.Rand().Intn(len(friends))]
	m.ProximityAssociations++
	if friend.ToolUser {
		m.ToolUserEncounters++
	}
	w.Encounter(friend.ID, m.ID)
	return friend
}

// Reproduce creates an offspring with partner at the monkey's cell.
// Mating with one's own mother is a silent no-op.
func (m *Monkey) Reproduce(w World, partner *Monkey) error {
	if partner == nil || partner.ID == m.MotherID {
		return nil
	}

	hair, err := InheritHair(m.Hair, partner.Hair, w.Rand())
	if err != nil {
		return err
	}
	child := w.Spawner().SpawnChild(m, partner, hair)
	return w.Birth(child)
}

// Learn gives an eligible monkey a chance to become a tool user under the
// model's transmission mode. The transition is irreversible.
func (m *Monkey) Learn(w World, partner *Monkey) error {
	if m.Age < LearningAge || m.ToolUser {
		return nil
	}

	x := w.Rand().Uniform(0, 100)
	rules := w.Rules()

	var learned bool
	switch rules.Mode {
	case ModeSocial:
		learned = partner != nil && partner.ToolUser &&
			x < float64(m.ToolUserEncounters)*rules.LearnRate
	case ModeInherited:
		learned = x < InheritedLearnChance && m.ToolTrait
	case ModeResourceAttraction:
		learned = m.nearResource(w) &&
			x < float64(m.ResourceEncounters)*rules.LearnRate
	default:
		return fmt.Errorf("%w %q", ErrUnknownMode, rules.Mode)
	}

	if learned {
		m.ToolUser = true
		m.Learned = LearnedYes
		m.AgeLearned = m.Age
		m.TickLearned = w.Clock()
		m.TransmissionMethod = string(rules.Mode)
	}
	return nil
}

// Grow ages the monkey one tick and rolls for death. A dead monkey is handed
// to the world for removal and reports true.
func (m *Monkey) Grow(w World) (bool, error) {
	m.Age++
	if !w.Rand().Bernoulli(DeathProbability(m.Age)) {
		return false, nil
	}
	m.Alive = false
	return true, w.Death(m)
}

// observeResources counts exposure to a nearby resource under resource attraction.
func (m *Monkey) observeResources(w World) {
	if w.Rules().Mode != ModeResourceAttraction {
		return
	}
	if m.nearResource(w) {
		m.ResourceEncounters++
	}
}

// nearResource reports whether a resource sits on or next to the monkey's cell.
func (m *Monkey) nearResource(w World) bool {
	site, ok := w.NearestResource(m.Position)
	return ok && world.Chebyshev(site, m.Position) <= 1
}
