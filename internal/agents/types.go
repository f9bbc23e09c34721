// Package agents provides the monkey data model, its per-tick behavior, and
// the static tool resources some runs scatter over the grid.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/toolsim/internal/entropy"
	"github.com/talgya/toolsim/internal/world"
)

// AgentID is a unique identifier for an agent. Ids start at 1 and are never reused.
type AgentID uint64

// UnknownMother marks a monkey seeded at initialization with no recorded mother.
const UnknownMother AgentID = 0

func (id AgentID) String() string {
	if id == UnknownMother {
		return "unknown"
	}
	return fmt.Sprintf("%d", uint64(id))
}

// HairPattern is the two-valued genetic marker that gates trait inheritance.
type HairPattern uint8

const (
	HairPlain     HairPattern = 1
	HairPatterned HairPattern = 2
)

// Valid reports whether h is one of the two patterns.
func (h HairPattern) Valid() bool {
	return h == HairPlain || h == HairPatterned
}

// LearnedStatus records whether and how a monkey became a tool user.
type LearnedStatus uint8

const (
	LearnedNo      LearnedStatus = iota
	LearnedYes                   // Acquired during the run
	LearnedFounder               // Seeded as a tool user
)

func (s LearnedStatus) String() string {
	switch s {
	case LearnedYes:
		return "true"
	case LearnedFounder:
		return "founder"
	default:
		return "false"
	}
}

// MarshalText renders the tri-state as false/true/founder.
func (s LearnedStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode is the model-wide rule set governing how tool use is acquired.
type Mode string

const (
	ModeSocial             Mode = "social"
	ModeInherited          Mode = "inherited"
	ModeResourceAttraction Mode = "resource_attraction"
)

// MethodNaive is the transmission method of a monkey that never learned.
const MethodNaive = "naive"

var (
	ErrUnknownMode     = errors.New("unknown transmission mode")
	ErrHairPattern     = errors.New("hair pattern out of domain")
	ErrDuplicateMonkey = errors.New("duplicate monkey id")
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSocial, ModeInherited, ModeResourceAttraction:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q (valid: social, inherited, resource_attraction)", ErrUnknownMode, s)
	}
}

// Monkey is the behavioral unit of the simulation.
type Monkey struct {
	ID       AgentID     `json:"id"`
	Position world.Coord `json:"position"`
	Age      int         `json:"age"` // Ticks alive
	Alive    bool        `json:"alive"`

	// Behavior and genetics
	ToolUser  bool          `json:"tool_user"`  // Monotonic: false→true at most once
	ToolTrait bool          `json:"tool_trait"` // Fixed at birth
	Learned   LearnedStatus `json:"learned_tool_use"`
	Hair      HairPattern   `json:"hair_pattern"`

	// Kinship. MotherID is a lookup key; the mother may be long gone.
	MotherID       AgentID `json:"mother_id"`
	MotherToolUser bool    `json:"mother_was_tool_user"`

	// Encounter counters, never decrease
	ToolUserEncounters    int `json:"tool_user_encounters"`
	ProximityAssociations int `json:"proximity_associations"`
	ResourceEncounters    int `json:"resource_encounters"`

	// Learning metadata
	AgeLearned         int    `json:"age_at_learning"`      // -1 until learned
	TickLearned        int    `json:"timestep_at_learning"` // -1 until learned
	TransmissionMethod string `json:"transmission_method"`
}

// ToolResource is an immobile object that pulls monkeys toward it in the
// resource-attraction variant.
type ToolResource struct {
	ID       AgentID     `json:"id"`
	Position world.Coord `json:"position"`
}

// Rules are the model-wide parameters agent behavior reads each tick.
type Rules struct {
	Mode       Mode
	LearnRate  float64 // Social encounter multiplier, or asocial rate under resource attraction
	Attraction float64 // Percent chance per move of stepping toward the nearest resource
}

// Actor is anything the scheduler can step.
type Actor interface {
	Ident() AgentID
	Step(w World) error
}

// World is the population model as seen by an acting agent.
type World interface {
	Grid() *world.Grid[AgentID]
	Rand() *entropy.Source
	Spawner() *Spawner
	Rules() Rules

	// Monkey looks up a live monkey. Dead or removed ids report false.
	Monkey(id AgentID) (*Monkey, bool)
	Population() int
	Capacity() int
	Clock() int

	// NearestResource returns the resource site nearest c, if any exist.
	NearestResource(c world.Coord) (world.Coord, bool)

	Encounter(partner, actor AgentID)
	Birth(child *Monkey) error
	Death(m *Monkey) error
}

// Ident implements Actor.
func (m *Monkey) Ident() AgentID { return m.ID }

// Ident implements Actor.
func (r *ToolResource) Ident() AgentID { return r.ID }

// Step implements Actor. Resources have no behavior of their own.
func (r *ToolResource) Step(World) error { return nil }
