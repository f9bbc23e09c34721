package sweep

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/toolsim/internal/config"
	"github.com/talgya/toolsim/internal/engine"
	"github.com/talgya/toolsim/internal/entropy"
	"github.com/talgya/toolsim/internal/persistence"
)

// Runner executes the cases of a plan sequentially.
type Runner struct {
	Plan *Plan
	Base *config.Config
	Sink persistence.Sink

	// SweepID prefixes every run id. Empty generates one.
	SweepID string

	mu      sync.Mutex
	current *engine.Engine
	stopped bool
}

// Outcome is the result of one case.
type Outcome struct {
	Case    Case
	Summary engine.RunSummary
	Err     error
}

// Run executes every case and returns their outcomes in case order. A case
// whose simulation halts on an error is recorded and the sweep moves on;
// a sink failure or Stop ends the sweep.
func (r *Runner) Run() ([]Outcome, error) {
	if r.SweepID == "" {
		r.SweepID = uuid.NewString()[:8]
	}
	baseSeed := r.Plan.Seed
	if baseSeed == 0 {
		baseSeed = entropy.CryptoSeed()
	}
	cases, err := r.Plan.Expand(r.Base, baseSeed)
	if err != nil {
		return nil, fmt.Errorf("expand plan: %w", err)
	}

	slog.Info("sweep started", "sweep_id", r.SweepID, "cases", len(cases), "base_seed", baseSeed)
	start := time.Now()

	outcomes := make([]Outcome, 0, len(cases))
	for _, c := range cases {
		out, err := r.runCase(c)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}

	slog.Info("sweep finished", "sweep_id", r.SweepID, "cases", len(outcomes),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return outcomes, nil
}

func (r *Runner) runCase(c Case) (Outcome, error) {
	out := Outcome{Case: c}

	p, err := c.Config.Params()
	if err != nil {
		return out, err
	}
	p.RunID = fmt.Sprintf("%s-%04d", r.SweepID, c.Index)

	sim, err := engine.NewSimulation(p)
	if err != nil {
		return out, fmt.Errorf("case %d: %w", c.Index, err)
	}
	eng := engine.NewEngine(sim)
	eng.ReportEvery = c.Config.Run.ReportEvery

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return out, engine.ErrInterrupted
	}
	r.current = eng
	r.mu.Unlock()

	res, err := eng.Run()

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()

	switch {
	case errors.Is(err, engine.ErrInterrupted):
		return out, err
	case err != nil:
		slog.Warn("case halted", "case", c.Index, "settings", c.String(), "error", err)
		out.Err = err
		return out, nil
	}

	out.Summary = res.Summary
	if r.Sink != nil {
		if err := r.Sink.Write(res); err != nil {
			return out, fmt.Errorf("write case %d: %w", c.Index, err)
		}
	}
	slog.Info("case finished", "case", c.Index, "settings", c.String(),
		"ticks", res.Summary.Ticks, "reason", res.Summary.StopReason)
	return out, nil
}

// Stop interrupts the running case and prevents further cases.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.current != nil {
		r.current.Stop()
	}
}
