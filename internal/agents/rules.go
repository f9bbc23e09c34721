package agents

import (
	"fmt"

	"github.com/talgya/toolsim/internal/entropy"
)

const (
	LearningAge          = 25     // Minimum age to pick up tool use
	BaseMortality        = 0.0001 // Death probability at age 0
	MortalityScale       = 10000  // Age divisor of the added death probability
	InheritedLearnChance = 85.0   // Percent chance for trait carriers under inherited mode
	DefaultLearnRate     = 5.0
	DefaultLifeSpan      = 500 // Upper bound of seeded starting ages
)

// FollowProbability is the chance a monkey steps toward its mother.
// It falls linearly from 1 at birth and is 0 from age 50 on.
func FollowProbability(age int) float64 {
	return entropy.Clamp01(1 - float64(age*2)/100)
}

// DeathProbability is the per-tick chance of death at the given age.
// Strictly increasing with age, capped only by the probability domain.
func DeathProbability(age int) float64 {
	return entropy.Clamp01(BaseMortality + float64(age)/MortalityScale)
}

// InheritHair derives an offspring's hair pattern from its parents'.
// Patterns sum to 2, 3 or 4; a mixed pair yields either pattern with equal odds.
func InheritHair(a, b HairPattern, rng *entropy.Source) (HairPattern, error) {
	if a.Valid() && b.Valid() {
		switch int(a) + int(b) {
		case 4:
			return HairPatterned, nil
		case 3:
			return HairPattern(rng.IntRange(1, 2)), nil
		case 2:
			return HairPlain, nil
		}
	}
	return 0, fmt.Errorf("%w: parents %d and %d", ErrHairPattern, a, b)
}

// InheritTrait reports whether an offspring with the given hair pattern
// carries the tool trait. Only patterned offspring of a patterned carrier do.
func InheritTrait(hair HairPattern, mother, father *Monkey) bool {
	if hair != HairPatterned {
		return false
	}
	return carries(mother) || carries(father)
}

func carries(m *Monkey) bool {
	return m != nil && m.ToolTrait && m.Hair == HairPatterned
}
