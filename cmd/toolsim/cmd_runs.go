package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/toolsim/internal/config"
	"github.com/talgya/toolsim/internal/persistence"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List the runs stored in the SQLite database, or in the CSV output
directory when no database is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadStoreConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Output.SQLite != "" {
				return listDBRuns(cmd.OutOrStdout(), cfg.Output.SQLite)
			}
			return listCSVRuns(cmd.OutOrStdout(), cfg.Output.Dir)
		},
	}
	addStoreFlags(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadStoreConfig(cmd)
			if err != nil {
				return err
			}
			nodes, _ := cmd.Flags().GetBool("nodes")
			if cfg.Output.SQLite != "" {
				return showDBRun(cmd.OutOrStdout(), cfg.Output.SQLite, args[0], nodes)
			}
			return showCSVRun(cmd.OutOrStdout(), cfg, args[0])
		},
	}
	addStoreFlags(cmd)
	cmd.Flags().Bool("nodes", false, "Also list every monkey (SQLite only)")
	return cmd
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("out", "o", "", "CSV output directory")
	f.Bool("compress", false, "Read zstd-compressed CSV files")
	f.String("sqlite", "", "Read runs from this SQLite database")
}

// loadStoreConfig loads the config and applies the --out, --compress and
// --sqlite flags.
func loadStoreConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("out") {
		cfg.Output.Dir, _ = f.GetString("out")
	}
	if f.Changed("compress") {
		cfg.Output.Compress, _ = f.GetBool("compress")
	}
	if f.Changed("sqlite") {
		cfg.Output.SQLite, _ = f.GetString("sqlite")
	}
	return cfg, nil
}

func listDBRuns(w io.Writer, path string) error {
	db, err := persistence.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := db.RunIDs()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	for _, id := range ids {
		s, err := db.LoadRun(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s ticks\t%s\n", s.RunID, humanize.Time(s.StartedAt),
			s.Mode, humanize.Comma(int64(s.Ticks)), s.StopReason)
	}
	return nil
}

// listCSVRuns scans dir for run_data files, plain or compressed.
func listCSVRuns(w io.Writer, dir string) error {
	var paths []string
	for _, pattern := range []string{"*_run_data.csv", "*_run_data.csv.zst"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		paths = append(paths, m...)
	}
	sort.Strings(paths)
	for _, p := range paths {
		_, rec, err := readRecord(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s ticks\t%s\n", rec["run_id"], rec["datetime"],
			rec["transmission_mech"], rec["n_time_steps"], rec["stop_reason"])
	}
	return nil
}

func showDBRun(w io.Writer, path, runID string, listNodes bool) error {
	db, err := persistence.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := db.LoadRun(runID)
	if err != nil {
		return err
	}
	nodes, err := db.LoadNodes(runID)
	if err != nil {
		return err
	}
	social, ancestry, err := db.EdgeCounts(runID)
	if err != nil {
		return fmt.Errorf("count edges %s: %w", runID, err)
	}

	printSummary(w, s)
	methods := make(map[string]int)
	users := 0
	for _, n := range nodes {
		if n.ToolUser {
			users++
			methods[n.Method]++
		}
	}
	fmt.Fprintf(w, "  %s monkeys recorded, %s ever used tools\n",
		humanize.Comma(int64(len(nodes))), humanize.Comma(int64(users)))
	for _, m := range sortedKeys(methods) {
		fmt.Fprintf(w, "    %s: %s\n", m, humanize.Comma(int64(methods[m])))
	}
	fmt.Fprintf(w, "  %s social edges, %s ancestry edges\n",
		humanize.Comma(int64(social)), humanize.Comma(int64(ancestry)))

	if listNodes {
		for _, n := range nodes {
			fmt.Fprintf(w, "%d\talive=%t\ttool_user=%t\tlearned=%s\tage=%d\tmother=%s\thair=%d\n",
				n.ID, n.Alive, n.ToolUser, n.Learned, n.Age, n.MotherID, n.Hair)
		}
	}
	return nil
}

func showCSVRun(w io.Writer, cfg *config.Config, runID string) error {
	cw := &persistence.CSVWriter{Dir: cfg.Output.Dir, Compress: cfg.Output.Compress}
	cols, rec, err := readRecord(cw.Path(runID, "run_data"))
	if err != nil {
		return err
	}
	for _, col := range cols {
		fmt.Fprintf(w, "%s: %s\n", col, rec[col])
	}
	for _, table := range []string{"nodes", "social_edges", "genetic_edges"} {
		rows, err := persistence.ReadCSV(cw.Path(runID, table))
		if err != nil {
			return fmt.Errorf("read %s: %w", table, err)
		}
		fmt.Fprintf(w, "%s: %s rows\n", table, humanize.Comma(int64(len(rows)-1)))
	}
	return nil
}

// readRecord reads a single-row CSV file, returning its header and a
// column → value map.
func readRecord(path string) ([]string, map[string]string, error) {
	rows, err := persistence.ReadCSV(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("%s: no data row", filepath.Base(path))
	}
	rec := make(map[string]string, len(rows[0]))
	for i, col := range rows[0] {
		if i < len(rows[1]) {
			rec[col] = strings.TrimSpace(rows[1][i])
		}
	}
	return rows[0], rec, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
