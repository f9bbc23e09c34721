package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/toolsim/internal/sweep"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep <plan.yaml>",
		Short: "Run a parameter sweep",
		Long: `Run every combination of the values listed in a sweep plan, each
replicated "iterations" times, one after another. Runs share the output sinks
of the config file.

Example plan:

  iterations: 10
  seed: 1000
  vary:
    - key: mode
      values: [social, inherited]
    - key: population.size
      values: ["50", "100", "200"]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			plan, err := sweep.LoadPlan(args[0])
			if err != nil {
				return err
			}
			sinks, err := openSinks(cfg)
			if err != nil {
				return err
			}
			defer sinks.Close()

			r := &sweep.Runner{Plan: plan, Base: cfg, Sink: sinks}
			release := onSignal(r.Stop)
			outcomes, err := r.Run()
			release()
			printOutcomes(cmd.OutOrStdout(), outcomes)
			return err
		},
	}
	return cmd
}

func printOutcomes(w io.Writer, outcomes []sweep.Outcome) {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(w, "%4d  %-50s  halted: %v\n", o.Case.Index, o.Case.String(), o.Err)
			continue
		}
		fmt.Fprintf(w, "%4d  %-50s  %8s ticks  %s\n", o.Case.Index, o.Case.String(),
			humanize.Comma(int64(o.Summary.Ticks)), o.Summary.StopReason)
	}
	fmt.Fprintf(w, "%s runs, %d halted\n", humanize.Comma(int64(len(outcomes))), failed)
}
