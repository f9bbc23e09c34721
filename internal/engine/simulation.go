// Package engine runs the population model: it seeds the grid, advances
// every agent once per tick, and decides when a run is over.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/toolsim/internal/agents"
	"github.com/talgya/toolsim/internal/entropy"
	"github.com/talgya/toolsim/internal/logging"
	"github.com/talgya/toolsim/internal/world"
)

// ThresholdFraction is the share of Na that must use tools to end a run.
const ThresholdFraction = 0.5

var (
	ErrNotRunning     = errors.New("simulation is not running")
	ErrDuplicateActor = errors.New("actor already scheduled")
)

// State is the lifecycle state of a Simulation.
type State uint8

const (
	StateInitializing State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	default:
		return "terminated"
	}
}

// Params configures one simulation run.
type Params struct {
	Width             int
	Height            int
	Population        int // Na: target and ceiling of the live population
	StartingToolUsers int
	LifeSpan          int // Upper bound of seeded starting ages
	Mode              agents.Mode
	LearnRate         float64
	Resources         int
	Attraction        float64
	Layout            world.Layout
	MaxTicks          int   // Hard tick ceiling; 0 disables
	Seed              int64 // 0 draws a seed from crypto/rand
	RunID             string
}

// DefaultParams mirrors the reference batch setup: a 20×20 grid of 100
// monkeys with one founder, social transmission.
func DefaultParams() Params {
	return Params{
		Width:             20,
		Height:            20,
		Population:        100,
		StartingToolUsers: 1,
		LifeSpan:          agents.DefaultLifeSpan,
		Mode:              agents.ModeSocial,
		LearnRate:         agents.DefaultLearnRate,
		Layout:            world.LayoutUniform,
		MaxTicks:          50000,
	}
}

// Validate checks the numeric parameters. The transmission mode is checked
// by the agents themselves when they try to learn.
func (p Params) Validate() error {
	if p.Width < 1 || p.Height < 1 {
		return fmt.Errorf("grid %dx%d: dimensions must be positive", p.Width, p.Height)
	}
	if p.Population < 1 {
		return fmt.Errorf("population must be positive, got %d", p.Population)
	}
	if p.StartingToolUsers < 0 || p.StartingToolUsers > p.Population {
		return fmt.Errorf("starting tool users must be in [0, %d], got %d", p.Population, p.StartingToolUsers)
	}
	if p.LifeSpan < 0 {
		return fmt.Errorf("life span must be non-negative, got %d", p.LifeSpan)
	}
	if p.LearnRate < 0 {
		return fmt.Errorf("learn rate must be non-negative, got %v", p.LearnRate)
	}
	if p.Resources < 0 || p.Resources > p.Width*p.Height {
		return fmt.Errorf("resource count must be in [0, %d], got %d", p.Width*p.Height, p.Resources)
	}
	if p.Attraction < 0 {
		return fmt.Errorf("attraction must be non-negative, got %v", p.Attraction)
	}
	if p.MaxTicks < 0 {
		return fmt.Errorf("max ticks must be non-negative, got %d", p.MaxTicks)
	}
	return nil
}

// Stats are running aggregates of the population.
type Stats struct {
	ToolUsers     int // Counted at the start of the latest tick
	TraitCarriers int // Counted at the start of the latest tick
	Births        int
	Deaths        int
}

// Simulation is the population model. It owns the grid, the scheduler and
// every relational log of a run. Not safe for concurrent use.
type Simulation struct {
	Params    Params
	RunID     string
	StartedAt time.Time
	Stats     Stats

	grid      *world.Grid[agents.AgentID]
	rng       *entropy.Source
	spawner   *agents.Spawner
	schedule  *Scheduler
	monkeys   map[agents.AgentID]*agents.Monkey // Live monkeys only
	resources []*agents.ToolResource
	nearest   map[world.Coord]world.Coord // Cell → nearest resource site

	clock  int
	state  State
	reason StopReason
	err    error
	result *Result

	nodes    []NodeRecord
	social   []Edge
	ancestry []Edge
}

// NewSimulation seeds a population per p and leaves it ready to run.
func NewSimulation(p Params) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if p.Layout == "" {
		p.Layout = world.LayoutUniform
	}

	grid, err := world.NewGrid[agents.AgentID](p.Width, p.Height)
	if err != nil {
		return nil, err
	}
	rng := entropy.NewSource(p.Seed)
	p.Seed = rng.Seed()

	runID := p.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	p.RunID = runID

	s := &Simulation{
		Params:    p,
		RunID:     runID,
		StartedAt: time.Now(),
		grid:      grid,
		rng:       rng,
		spawner:   agents.NewSpawner(rng),
		schedule:  NewScheduler(),
		monkeys:   make(map[agents.AgentID]*agents.Monkey, p.Population),
		state:     StateInitializing,
	}

	if err := s.seedPopulation(); err != nil {
		return nil, err
	}
	if p.Mode == agents.ModeResourceAttraction {
		if err := s.seedResources(); err != nil {
			return nil, err
		}
	}

	s.state = StateRunning
	slog.Info("simulation initialized",
		"run_id", s.RunID,
		"seed", p.Seed,
		"grid", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"population", p.Population,
		"founders", p.StartingToolUsers,
		"mode", p.Mode,
		"resources", len(s.resources),
	)
	return s, nil
}

// seedPopulation places the naive monkeys at random cells and the founders
// at the center of the grid.
func (s *Simulation) seedPopulation() error {
	p := s.Params
	for i := 0; i < p.Population-p.StartingToolUsers; i++ {
		pos := world.Coord{X: s.rng.Intn(p.Width), Y: s.rng.Intn(p.Height)}
		if err := s.addMonkey(s.spawner.SpawnNaive(pos, p.LifeSpan)); err != nil {
			return err
		}
	}
	center := s.grid.Center()
	for i := 0; i < p.StartingToolUsers; i++ {
		if err := s.addMonkey(s.spawner.SpawnFounder(center)); err != nil {
			return err
		}
	}
	return nil
}

// seedResources places one ToolResource on each of Resources distinct cells.
func (s *Simulation) seedResources() error {
	cfg := world.DefaultSiteConfig(s.Params.Resources)
	cfg.Layout = s.Params.Layout
	cfg.Seed = s.Params.Seed
	sites, err := world.PlaceSites(s.Params.Width, s.Params.Height, cfg, s.rng)
	if err != nil {
		return fmt.Errorf("seed resources: %w", err)
	}
	for _, site := range sites {
		r := s.spawner.SpawnResource(site)
		if err := s.schedule.Add(r); err != nil {
			return err
		}
		s.resources = append(s.resources, r)
	}
	s.buildNearestTable()
	return nil
}

// buildNearestTable precomputes the nearest resource site of every cell.
// Resources never move, so the table is valid for the whole run.
func (s *Simulation) buildNearestTable() {
	if len(s.resources) == 0 {
		return
	}
	s.nearest = make(map[world.Coord]world.Coord, s.grid.CellCount())
	for x := 0; x < s.grid.Width; x++ {
		for y := 0; y < s.grid.Height; y++ {
			c := world.Coord{X: x, Y: y}
			best := s.resources[0].Position
			bestDist := world.Distance(c, best)
			for _, r := range s.resources[1:] {
				if d := world.Distance(c, r.Position); d < bestDist {
					best, bestDist = r.Position, d
				}
			}
			s.nearest[c] = best
		}
	}
}

// Step runs one tick: census, activate every agent, advance the clock,
// then evaluate the stop conditions against the census taken before the
// agents acted. A fatal agent error halts the model and is returned.
func (s *Simulation) Step() error {
	if s.state != StateRunning {
		return ErrNotRunning
	}

	users, carriers := s.census()
	s.Stats.ToolUsers = users
	s.Stats.TraitCarriers = carriers

	err := s.schedule.Tick(s.rng, func(a agents.Actor) error {
		return a.Step(s)
	})
	if err != nil {
		s.halt(err)
		return err
	}
	s.clock++

	if reason := s.stopReason(users, carriers); reason != StopUnset {
		s.finish(reason)
	}
	return nil
}

// stopReason evaluates the stop conditions in priority order.
// The counts are the ones taken at the start of the tick, so a run stops one
// tick after the population state first satisfies a condition.
func (s *Simulation) stopReason(users, carriers int) StopReason {
	switch {
	case float64(users)/float64(s.Params.Population) >= ThresholdFraction:
		return StopThreshold
	case s.Params.Mode == agents.ModeSocial && users == 0:
		return StopNoUsers
	case s.Params.Mode == agents.ModeInherited && carriers == 0:
		return StopNoUsers
	case len(s.monkeys) == 0:
		return StopAllDead
	case s.Params.MaxTicks > 0 && s.clock >= s.Params.MaxTicks:
		return StopTickCeiling
	}
	return StopUnset
}

// halt terminates the model after a fatal error. No output is produced.
func (s *Simulation) halt(err error) {
	s.state = StateTerminated
	s.err = err
	slog.Error("simulation halted", "run_id", s.RunID, "tick", s.clock, "error", err)
}

// finish terminates the model and assembles its Result.
func (s *Simulation) finish(reason StopReason) {
	s.reason = reason

	live := s.Monkeys()
	nodes := make([]NodeRecord, 0, len(s.nodes)+len(live))
	nodes = append(nodes, s.nodes...)
	finalUsers, finalCarriers := 0, 0
	for _, m := range live {
		nodes = append(nodes, snapshotNode(s.RunID, m))
		if m.ToolUser {
			finalUsers++
		}
		if m.ToolTrait {
			finalCarriers++
		}
	}

	p := s.Params
	s.result = &Result{
		Summary: RunSummary{
			RunID:              s.RunID,
			StartedAt:          s.StartedAt,
			Seed:               p.Seed,
			Height:             p.Height,
			Width:              p.Width,
			StartingUsers:      p.StartingToolUsers,
			Ticks:              s.clock,
			Population:         p.Population,
			LifeSpan:           p.LifeSpan,
			Resources:          len(s.resources),
			LearnRate:          p.LearnRate,
			Attraction:         p.Attraction,
			Layout:             string(p.Layout),
			Mode:               string(p.Mode),
			StopReason:         string(reason),
			FinalPopulation:    len(live),
			FinalToolUsers:     finalUsers,
			FinalTraitCarriers: finalCarriers,
			Births:             s.Stats.Births,
			Deaths:             s.Stats.Deaths,
		},
		Nodes:         nodes,
		SocialEdges:   s.social,
		AncestryEdges: s.ancestry,
	}
	s.state = StateTerminated

	slog.Info("run finished",
		"run_id", s.RunID,
		"ticks", s.clock,
		"reason", string(reason),
		"alive", len(live),
		"tool_users", finalUsers,
		"births", s.Stats.Births,
		"deaths", s.Stats.Deaths,
	)
}

// State returns the lifecycle state.
func (s *Simulation) State() State { return s.state }

// Running reports whether further ticks will be processed.
func (s *Simulation) Running() bool { return s.state == StateRunning }

// StopReason returns why the run terminated, or StopUnset.
func (s *Simulation) StopReason() StopReason { return s.reason }

// Err returns the fatal error that halted the run, if any.
func (s *Simulation) Err() error { return s.err }

// Result returns the finished run's output, or nil while running or after a
// fatal error.
func (s *Simulation) Result() *Result { return s.result }

// Monkeys returns the live monkeys ordered by id.
func (s *Simulation) Monkeys() []*agents.Monkey {
	out := make([]*agents.Monkey, 0, len(s.monkeys))
	for _, m := range s.monkeys {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resources returns the placed tool resources.
func (s *Simulation) Resources() []*agents.ToolResource {
	return s.resources
}

// ── agents.World ─────────────────────────────────────────────────────

// Grid implements agents.World.
func (s *Simulation) Grid() *world.Grid[agents.AgentID] { return s.grid }

// Rand implements agents.World.
func (s *Simulation) Rand() *entropy.Source { return s.rng }

// Spawner implements agents.World.
func (s *Simulation) Spawner() *agents.Spawner { return s.spawner }

// Clock implements agents.World.
func (s *Simulation) Clock() int { return s.clock }

// Capacity implements agents.World.
func (s *Simulation) Capacity() int { return s.Params.Population }

// Population implements agents.World.
func (s *Simulation) Population() int { return len(s.monkeys) }

// Rules implements agents.World.
func (s *Simulation) Rules() agents.Rules {
	return agents.Rules{
		Mode:       s.Params.Mode,
		LearnRate:  s.Params.LearnRate,
		Attraction: s.Params.Attraction,
	}
}

// Monkey implements agents.World.
func (s *Simulation) Monkey(id agents.AgentID) (*agents.Monkey, bool) {
	m, ok := s.monkeys[id]
	return m, ok
}

// NearestResource implements agents.World.
func (s *Simulation) NearestResource(c world.Coord) (world.Coord, bool) {
	site, ok := s.nearest[c]
	return site, ok
}

// Encounter implements agents.World.
func (s *Simulation) Encounter(partner, actor agents.AgentID) {
	s.social = append(s.social, Edge{Source: partner, Target: actor})
	slog.Log(context.Background(), logging.LevelTrace, "encounter", "tick", s.clock, "partner", partner, "actor", actor)
}
