package engine

import (
	"errors"
	"testing"

	"github.com/talgya/toolsim/internal/agents"
	"github.com/talgya/toolsim/internal/world"
)

func testParams(seed int64) Params {
	p := DefaultParams()
	p.Seed = seed
	p.RunID = "test-run"
	return p
}

func newTestSim(t *testing.T, p Params) *Simulation {
	t.Helper()
	sim, err := NewSimulation(p)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	return sim
}

func runToEnd(t *testing.T, sim *Simulation) *Result {
	t.Helper()
	for sim.Running() {
		if err := sim.Step(); err != nil {
			t.Fatalf("tick %d: %v", sim.Clock(), err)
		}
	}
	res := sim.Result()
	if res == nil {
		t.Fatal("terminated run produced no result")
	}
	return res
}

func TestNewSimulationSeedsPopulation(t *testing.T) {
	p := testParams(11)
	p.Population = 30
	p.StartingToolUsers = 3
	sim := newTestSim(t, p)

	if sim.State() != StateRunning {
		t.Fatalf("state = %v, want running", sim.State())
	}
	monkeys := sim.Monkeys()
	if len(monkeys) != 30 {
		t.Fatalf("seeded %d monkeys, want 30", len(monkeys))
	}

	founders := 0
	center := sim.Grid().Center()
	for _, m := range monkeys {
		if !m.Alive {
			t.Errorf("monkey %d seeded dead", m.ID)
		}
		if m.Age < 0 || m.Age > p.LifeSpan {
			t.Errorf("monkey %d age %d outside [0, %d]", m.ID, m.Age, p.LifeSpan)
		}
		if pos, ok := sim.Grid().Position(m.ID); !ok || pos != m.Position {
			t.Errorf("monkey %d grid position %v, recorded %v", m.ID, pos, m.Position)
		}
		if m.ToolUser {
			founders++
			if m.Position != center || !m.ToolTrait || m.Hair != agents.HairPatterned || m.Learned != agents.LearnedFounder {
				t.Errorf("founder %+v not seeded as a patterned tool user at the center", m)
			}
		}
	}
	if founders != 3 {
		t.Errorf("founders = %d, want 3", founders)
	}
	if len(sim.Resources()) != 0 {
		t.Errorf("social run placed %d resources", len(sim.Resources()))
	}
}

func TestNewSimulationRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero width", func(p *Params) { p.Width = 0 }},
		{"zero population", func(p *Params) { p.Population = 0 }},
		{"too many founders", func(p *Params) { p.StartingToolUsers = p.Population + 1 }},
		{"negative learn rate", func(p *Params) { p.LearnRate = -1 }},
		{"too many resources", func(p *Params) { p.Resources = p.Width*p.Height + 1 }},
		{"negative attraction", func(p *Params) { p.Attraction = -5 }},
		{"negative ceiling", func(p *Params) { p.MaxTicks = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(1)
			tt.mutate(&p)
			if _, err := NewSimulation(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSmallSocialRunStops(t *testing.T) {
	p := testParams(42)
	p.Population = 10
	p.StartingToolUsers = 1
	p.Mode = agents.ModeSocial
	sim := newTestSim(t, p)

	res := runToEnd(t, sim)
	reason := StopReason(res.Summary.StopReason)
	if reason != StopThreshold && reason != StopNoUsers {
		t.Errorf("stop reason = %q, want threshold or no more users", reason)
	}
	if res.Summary.Ticks <= 0 {
		t.Errorf("ticks = %d, want > 0", res.Summary.Ticks)
	}
	if sim.StopReason() != reason {
		t.Errorf("StopReason() = %q, summary says %q", sim.StopReason(), reason)
	}
}

func TestPopulationNeverExceedsCapacity(t *testing.T) {
	p := testParams(5)
	p.Width, p.Height = 2, 2
	p.Population = 20
	p.StartingToolUsers = 1
	p.Mode = agents.ModeInherited
	p.MaxTicks = 300
	sim := newTestSim(t, p)

	for sim.Running() {
		if err := sim.Step(); err != nil {
			t.Fatalf("tick %d: %v", sim.Clock(), err)
		}
		if n := sim.Population(); n > p.Population {
			t.Fatalf("tick %d: population %d exceeds %d", sim.Clock(), n, p.Population)
		}
	}
}

func TestTickCeiling(t *testing.T) {
	p := testParams(9)
	p.Population = 50
	p.StartingToolUsers = 0
	p.Mode = agents.ModeResourceAttraction
	p.Resources = 3
	p.Attraction = 50
	p.LearnRate = 0
	p.MaxTicks = 5
	sim := newTestSim(t, p)

	if len(sim.Resources()) != 3 {
		t.Fatalf("placed %d resources, want 3", len(sim.Resources()))
	}
	res := runToEnd(t, sim)
	if res.Summary.StopReason != string(StopTickCeiling) {
		t.Errorf("stop reason = %q, want %q", res.Summary.StopReason, StopTickCeiling)
	}
	if res.Summary.Ticks != 5 {
		t.Errorf("ticks = %d, want 5", res.Summary.Ticks)
	}
	if res.Summary.Resources != 3 {
		t.Errorf("summary resources = %d, want 3", res.Summary.Resources)
	}
	if res.Summary.FinalToolUsers != 0 {
		t.Errorf("%d monkeys learned with a zero learn rate", res.Summary.FinalToolUsers)
	}
}

func TestNearestResourceTable(t *testing.T) {
	p := testParams(3)
	p.Width, p.Height = 8, 8
	p.Population = 10
	p.StartingToolUsers = 0
	p.Mode = agents.ModeResourceAttraction
	p.Resources = 4
	sim := newTestSim(t, p)

	sites := make(map[world.Coord]bool)
	for _, r := range sim.Resources() {
		sites[r.Position] = true
	}
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			c := world.Coord{X: x, Y: y}
			got, ok := sim.NearestResource(c)
			if !ok {
				t.Fatalf("no nearest resource for %v", c)
			}
			if !sites[got] {
				t.Fatalf("nearest resource %v of %v is not a site", got, c)
			}
			for site := range sites {
				if world.Distance(c, site) < world.Distance(c, got) {
					t.Errorf("%v: site %v is closer than %v", c, site, got)
				}
			}
		}
	}
}

func TestUnknownModeHaltsRun(t *testing.T) {
	p := testParams(8)
	p.Population = 10
	p.StartingToolUsers = 0
	p.Mode = agents.Mode("telepathy")
	sim := newTestSim(t, p)

	err := sim.Step()
	if !errors.Is(err, agents.ErrUnknownMode) {
		t.Fatalf("Step: got %v, want ErrUnknownMode", err)
	}
	if sim.State() != StateTerminated {
		t.Errorf("state = %v, want terminated", sim.State())
	}
	if !errors.Is(sim.Err(), agents.ErrUnknownMode) {
		t.Errorf("Err() = %v", sim.Err())
	}
	if sim.Result() != nil {
		t.Error("halted run produced a result")
	}
	if err := sim.Step(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Step after halt: got %v, want ErrNotRunning", err)
	}
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	p := testParams(12)
	p.Population = 10
	p.StartingToolUsers = 0
	sim := newTestSim(t, p)

	// No users in a social run: stops after the first tick.
	res := runToEnd(t, sim)
	if res.Summary.StopReason != string(StopNoUsers) {
		t.Fatalf("stop reason = %q, want %q", res.Summary.StopReason, StopNoUsers)
	}
	if res.Summary.Ticks != 1 {
		t.Errorf("ticks = %d, want 1", res.Summary.Ticks)
	}

	clock := sim.Clock()
	if err := sim.Step(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Step after stop: got %v, want ErrNotRunning", err)
	}
	if sim.Clock() != clock {
		t.Errorf("clock advanced after stop: %d → %d", clock, sim.Clock())
	}
}

func TestThresholdUsesCountsFromStartOfTick(t *testing.T) {
	p := testParams(13)
	p.Population = 4
	p.StartingToolUsers = 2
	sim := newTestSim(t, p)

	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if sim.StopReason() != StopThreshold {
		t.Errorf("stop reason = %q, want %q", sim.StopReason(), StopThreshold)
	}
	if sim.Clock() != 1 {
		t.Errorf("clock = %d, want 1", sim.Clock())
	}
}

func TestResultRecordsEveryMonkeyOnce(t *testing.T) {
	p := testParams(21)
	p.Width, p.Height = 5, 5
	p.Population = 25
	p.StartingToolUsers = 1
	p.Mode = agents.ModeInherited
	p.MaxTicks = 400
	sim := newTestSim(t, p)

	res := runToEnd(t, sim)
	s := res.Summary

	seen := make(map[agents.AgentID]bool, len(res.Nodes))
	alive := 0
	for _, n := range res.Nodes {
		if seen[n.ID] {
			t.Fatalf("monkey %d recorded twice", n.ID)
		}
		seen[n.ID] = true
		if n.RunID != "test-run" {
			t.Errorf("node %d run id %q", n.ID, n.RunID)
		}
		if n.Alive {
			alive++
		}
	}
	if len(res.Nodes) != p.Population+s.Births {
		t.Errorf("%d node records, want %d initial + %d births", len(res.Nodes), p.Population, s.Births)
	}
	if alive != s.FinalPopulation {
		t.Errorf("%d live records, final population %d", alive, s.FinalPopulation)
	}
	if s.FinalPopulation != p.Population+s.Births-s.Deaths {
		t.Errorf("final population %d != %d + %d - %d", s.FinalPopulation, p.Population, s.Births, s.Deaths)
	}
	if len(res.AncestryEdges) != s.Births {
		t.Errorf("%d ancestry edges, %d births", len(res.AncestryEdges), s.Births)
	}
	for _, e := range res.AncestryEdges {
		if !seen[e.Source] || !seen[e.Target] {
			t.Errorf("ancestry edge %v references an unrecorded monkey", e)
		}
	}
	for _, e := range res.SocialEdges {
		if e.Source == e.Target {
			t.Errorf("self encounter %v", e)
		}
	}
}

func TestSameSeedSameRun(t *testing.T) {
	run := func() *Result {
		p := testParams(77)
		p.Population = 30
		p.Mode = agents.ModeInherited
		p.MaxTicks = 200
		return runToEnd(t, newTestSim(t, p))
	}
	a, b := run(), run()

	if a.Summary.Ticks != b.Summary.Ticks || a.Summary.Births != b.Summary.Births ||
		a.Summary.Deaths != b.Summary.Deaths || a.Summary.StopReason != b.Summary.StopReason {
		t.Errorf("runs diverged: %+v vs %+v", a.Summary, b.Summary)
	}
	if len(a.SocialEdges) != len(b.SocialEdges) {
		t.Fatalf("social edges %d vs %d", len(a.SocialEdges), len(b.SocialEdges))
	}
	for i := range a.SocialEdges {
		if a.SocialEdges[i] != b.SocialEdges[i] {
			t.Fatalf("social edge %d: %v vs %v", i, a.SocialEdges[i], b.SocialEdges[i])
		}
	}
}

func TestStopReason(t *testing.T) {
	alive := map[agents.AgentID]*agents.Monkey{1: {ID: 1}}
	tests := []struct {
		name     string
		mode     agents.Mode
		maxTicks int
		clock    int
		monkeys  map[agents.AgentID]*agents.Monkey
		users    int
		carriers int
		want     StopReason
	}{
		{"threshold before anything else", agents.ModeSocial, 5, 5, alive, 50, 0, StopThreshold},
		{"social without users", agents.ModeSocial, 0, 0, alive, 0, 10, StopNoUsers},
		{"social with users", agents.ModeSocial, 0, 0, alive, 1, 0, StopUnset},
		{"inherited without carriers", agents.ModeInherited, 0, 0, alive, 3, 0, StopNoUsers},
		{"inherited with carriers but no users", agents.ModeInherited, 0, 0, alive, 0, 2, StopUnset},
		{"resource mode without users keeps going", agents.ModeResourceAttraction, 0, 0, alive, 0, 0, StopUnset},
		{"all dead", agents.ModeResourceAttraction, 0, 0, map[agents.AgentID]*agents.Monkey{}, 0, 0, StopAllDead},
		{"tick ceiling", agents.ModeResourceAttraction, 10, 10, alive, 0, 0, StopTickCeiling},
		{"below the ceiling", agents.ModeResourceAttraction, 10, 9, alive, 0, 0, StopUnset},
		{"no ceiling", agents.ModeResourceAttraction, 0, 1 << 20, alive, 0, 0, StopUnset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.Mode = tt.mode
			p.MaxTicks = tt.maxTicks
			s := &Simulation{Params: p, monkeys: tt.monkeys, clock: tt.clock}
			if got := s.stopReason(tt.users, tt.carriers); got != tt.want {
				t.Errorf("stopReason(%d, %d) = %q, want %q", tt.users, tt.carriers, got, tt.want)
			}
		})
	}
}
