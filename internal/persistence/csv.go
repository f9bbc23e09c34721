package persistence

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/toolsim/internal/engine"
)

var (
	runHeader = []string{
		"run_id", "datetime", "seed", "h", "w", "starting_users", "n_time_steps",
		"n_agents", "life_span", "n_resources", "learn_rate", "attraction",
		"resource_layout", "transmission_mech", "stop_reason",
		"final_population", "final_tool_users", "final_trait_carriers", "births", "deaths",
	}
	nodeHeader = []string{
		"id", "run_id", "living", "tool_user", "learned_tool_use", "tool_user_encounters",
		"proximity_associations", "age_learned_tool_use", "time_step_learned",
		"learning_method", "age", "mother", "mother_tool_user", "hair",
	}
	edgeHeader = []string{"source", "target"}
)

// CSVWriter writes one set of CSV files per run into Dir:
// <run>_run_data.csv, <run>_nodes.csv, <run>_social_edges.csv and
// <run>_genetic_edges.csv. With Compress set each file is zstd-compressed
// and gets a .csv.zst suffix.
type CSVWriter struct {
	Dir      string
	Compress bool
}

// NewCSVWriter creates the output directory if needed.
func NewCSVWriter(dir string, compress bool) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVWriter{Dir: dir, Compress: compress}, nil
}

// Path returns the file path for one of a run's tables, e.g. "nodes".
func (w *CSVWriter) Path(runID, table string) string {
	ext := ".csv"
	if w.Compress {
		ext = ".csv.zst"
	}
	return filepath.Join(w.Dir, runID+"_"+table+ext)
}

// Write implements Sink.
func (w *CSVWriter) Write(res *engine.Result) error {
	runID := res.Summary.RunID
	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"run_data", runHeader, [][]string{summaryRow(res.Summary)}},
		{"nodes", nodeHeader, nodeRows(res.Nodes)},
		{"social_edges", edgeHeader, edgeRows(res.SocialEdges)},
		{"genetic_edges", edgeHeader, edgeRows(res.AncestryEdges)},
	}
	for _, t := range tables {
		if err := w.writeFile(w.Path(runID, t.name), t.header, t.rows); err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
	}
	return nil
}

// Close implements Sink.
func (w *CSVWriter) Close() error { return nil }

func (w *CSVWriter) writeFile(path string, header []string, rows [][]string) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var out io.Writer = f
	if w.Compress {
		enc, zerr := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zerr != nil {
			return zerr
		}
		defer func() {
			if cerr := enc.Close(); err == nil {
				err = cerr
			}
		}()
		out = enc
	}

	bw := bufio.NewWriterSize(out, 64*1024)
	cw := csv.NewWriter(bw)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadCSV reads back a file written by CSVWriter, decompressing it when the
// path ends in .zst. The header is the first record.
func ReadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in io.Reader = f
	if filepath.Ext(path) == ".zst" {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		in = dec
	}
	return csv.NewReader(bufio.NewReader(in)).ReadAll()
}

func summaryRow(s engine.RunSummary) []string {
	return []string{
		s.RunID,
		s.StartedAt.Format(time.RFC3339),
		strconv.FormatInt(s.Seed, 10),
		strconv.Itoa(s.Height),
		strconv.Itoa(s.Width),
		strconv.Itoa(s.StartingUsers),
		strconv.Itoa(s.Ticks),
		strconv.Itoa(s.Population),
		strconv.Itoa(s.LifeSpan),
		strconv.Itoa(s.Resources),
		formatFloat(s.LearnRate),
		formatFloat(s.Attraction),
		s.Layout,
		s.Mode,
		s.StopReason,
		strconv.Itoa(s.FinalPopulation),
		strconv.Itoa(s.FinalToolUsers),
		strconv.Itoa(s.FinalTraitCarriers),
		strconv.Itoa(s.Births),
		strconv.Itoa(s.Deaths),
	}
}

func nodeRows(nodes []engine.NodeRecord) [][]string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			n.ID.String(),
			n.RunID,
			strconv.FormatBool(n.Alive),
			strconv.FormatBool(n.ToolUser),
			n.Learned.String(),
			strconv.Itoa(n.ToolUserEncounters),
			strconv.Itoa(n.ProximityAssociations),
			strconv.Itoa(n.AgeLearned),
			strconv.Itoa(n.TickLearned),
			n.Method,
			strconv.Itoa(n.Age),
			n.MotherID.String(),
			strconv.FormatBool(n.MotherToolUser),
			strconv.Itoa(int(n.Hair)),
		})
	}
	return rows
}

func edgeRows(edges []engine.Edge) [][]string {
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{e.Source.String(), e.Target.String()})
	}
	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
