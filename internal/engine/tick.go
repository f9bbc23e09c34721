package engine

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrInterrupted is returned by Run when Stop is called before the
// simulation terminates on its own.
var ErrInterrupted = errors.New("run interrupted")

// Engine drives a Simulation forward until it terminates.
type Engine struct {
	Sim         *Simulation
	ReportEvery int // Progress log interval in ticks; 0 disables

	running atomic.Bool
	stopped atomic.Bool
}

// NewEngine wraps sim with the default progress interval.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{Sim: sim, ReportEvery: 500}
}

// Run steps the simulation until it terminates. Blocks until then or until
// Stop is called, even if Stop came first. A halted run returns the agent
// error.
func (e *Engine) Run() (*Result, error) {
	e.running.Store(true)
	defer e.running.Store(false)

	start := time.Now()
	slog.Info("simulation engine started", "run_id", e.Sim.RunID)

	for e.Sim.Running() {
		if e.stopped.Load() {
			slog.Warn("simulation engine interrupted", "run_id", e.Sim.RunID, "tick", e.Sim.Clock())
			return nil, ErrInterrupted
		}
		if err := e.Sim.Step(); err != nil {
			return nil, err
		}
		if e.ReportEvery > 0 && e.Sim.Clock()%e.ReportEvery == 0 {
			slog.Info("tick",
				"tick", e.Sim.Clock(),
				"alive", e.Sim.Population(),
				"tool_users", e.Sim.Stats.ToolUsers,
				"carriers", e.Sim.Stats.TraitCarriers,
				"births", e.Sim.Stats.Births,
				"deaths", e.Sim.Stats.Deaths,
			)
		}
	}

	slog.Info("simulation engine stopped",
		"run_id", e.Sim.RunID,
		"tick", e.Sim.Clock(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return e.Sim.Result(), nil
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Stop asks the loop to return before the next tick.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}
