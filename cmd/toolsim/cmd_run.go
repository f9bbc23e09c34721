package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/toolsim/internal/config"
	"github.com/talgya/toolsim/internal/engine"
	"github.com/talgya/toolsim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single simulation",
		Long: `Run a single simulation until a stop condition is met: half the
population uses tools, no users (or trait carriers) remain, every monkey has
died, or the tick ceiling is reached.

Flags override values from the config file and the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return runOnce(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.Int("width", 0, "Grid width")
	f.Int("height", 0, "Grid height")
	f.IntP("population", "n", 0, "Population size (Na)")
	f.Int("starting-users", 0, "Founding tool users placed at the grid center")
	f.StringP("mode", "m", "", "Transmission mode: social, inherited, resource_attraction")
	f.Float64("learn-rate", 0, "Learning chance per encounter, in percent")
	f.Int("resources", 0, "Tool resources (resource_attraction mode)")
	f.Float64("attraction", 0, "Percent chance per tick of moving toward a resource")
	f.String("layout", "", "Resource layout: uniform, clustered")
	f.Int64("seed", 0, "Random seed (0 draws one)")
	f.Int("max-ticks", 0, "Tick ceiling (0 disables)")
	f.Int("report-every", 0, "Progress log interval in ticks")
	f.StringP("out", "o", "", "Output directory for CSV files")
	f.Bool("compress", false, "Write zstd-compressed CSV files")
	f.Bool("no-csv", false, "Skip CSV output")
	f.String("sqlite", "", "Also write results to this SQLite database")
	return cmd
}

// runFlagKeys maps run flags to config keys.
var runFlagKeys = map[string]string{
	"width":          "grid.width",
	"height":         "grid.height",
	"population":     "population.size",
	"starting-users": "population.starting_tool_users",
	"mode":           "transmission.mode",
	"learn-rate":     "transmission.learn_rate",
	"resources":      "resources.count",
	"attraction":     "resources.attraction",
	"layout":         "resources.layout",
	"seed":           "run.seed",
	"max-ticks":      "run.max_ticks",
}

// applyRunFlags copies explicitly set flags into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	for flag, key := range runFlagKeys {
		if !f.Changed(flag) {
			continue
		}
		if err := cfg.Set(key, f.Lookup(flag).Value.String()); err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
	}
	if f.Changed("report-every") {
		cfg.Run.ReportEvery, _ = f.GetInt("report-every")
	}
	if f.Changed("out") {
		cfg.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("compress") {
		cfg.Output.Compress, _ = f.GetBool("compress")
	}
	if f.Changed("no-csv") {
		noCSV, _ := f.GetBool("no-csv")
		cfg.Output.CSV = !noCSV
	}
	if f.Changed("sqlite") {
		cfg.Output.SQLite, _ = f.GetString("sqlite")
	}
	return nil
}

func openSinks(cfg *config.Config) (persistence.Multi, error) {
	return persistence.OpenSinks(persistence.Options{
		Dir:      cfg.Output.Dir,
		CSV:      cfg.Output.CSV,
		Compress: cfg.Output.Compress,
		SQLite:   cfg.Output.SQLite,
	})
}

func runOnce(cmd *cobra.Command, cfg *config.Config) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer sinks.Close()

	sim, err := engine.NewSimulation(params)
	if err != nil {
		return err
	}
	eng := engine.NewEngine(sim)
	eng.ReportEvery = cfg.Run.ReportEvery

	release := onSignal(eng.Stop)
	res, err := eng.Run()
	release()
	if err != nil {
		return err
	}

	if err := sinks.Write(res); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	printSummary(cmd.OutOrStdout(), res.Summary)
	return nil
}

func printSummary(w io.Writer, s engine.RunSummary) {
	fmt.Fprintf(w, "run %s (seed %d, %s mode)\n", s.RunID, s.Seed, s.Mode)
	fmt.Fprintf(w, "  stopped after %s ticks: %s\n", humanize.Comma(int64(s.Ticks)), s.StopReason)
	fmt.Fprintf(w, "  population %s of %s, %s tool users, %s trait carriers\n",
		humanize.Comma(int64(s.FinalPopulation)), humanize.Comma(int64(s.Population)),
		humanize.Comma(int64(s.FinalToolUsers)), humanize.Comma(int64(s.FinalTraitCarriers)))
	fmt.Fprintf(w, "  %s births, %s deaths\n", humanize.Comma(int64(s.Births)), humanize.Comma(int64(s.Deaths)))
}
