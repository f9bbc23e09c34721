// Package persistence writes finished runs to their output sinks: CSV files
// and a SQLite database.
package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/toolsim/internal/agents"
	"github.com/talgya/toolsim/internal/engine"
)

// DB wraps a SQLite connection holding the results of many runs.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		datetime TEXT NOT NULL,
		seed INTEGER NOT NULL,
		h INTEGER NOT NULL,
		w INTEGER NOT NULL,
		starting_users INTEGER NOT NULL,
		n_time_steps INTEGER NOT NULL,
		n_agents INTEGER NOT NULL,
		life_span INTEGER NOT NULL,
		n_resources INTEGER NOT NULL,
		learn_rate REAL NOT NULL,
		attraction REAL NOT NULL,
		resource_layout TEXT NOT NULL,
		transmission_mech TEXT NOT NULL,
		stop_reason TEXT NOT NULL,
		final_population INTEGER NOT NULL,
		final_tool_users INTEGER NOT NULL,
		final_trait_carriers INTEGER NOT NULL,
		births INTEGER NOT NULL,
		deaths INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS nodes (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		living INTEGER NOT NULL,
		tool_user INTEGER NOT NULL,
		learned_tool_use TEXT NOT NULL,
		tool_user_encounters INTEGER NOT NULL,
		proximity_associations INTEGER NOT NULL,
		age_learned_tool_use INTEGER NOT NULL,
		time_step_learned INTEGER NOT NULL,
		learning_method TEXT NOT NULL,
		age INTEGER NOT NULL,
		mother INTEGER,
		mother_tool_user INTEGER NOT NULL,
		hair INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS social_edges (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		source INTEGER NOT NULL,
		target INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS ancestry_edges (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		source INTEGER NOT NULL,
		target INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_tool_user ON nodes(run_id, tool_user);
	CREATE INDEX IF NOT EXISTS idx_runs_mech ON runs(transmission_mech);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// runRow is the runs table row.
type runRow struct {
	RunID              string  `db:"run_id"`
	Datetime           string  `db:"datetime"`
	Seed               int64   `db:"seed"`
	Height             int     `db:"h"`
	Width              int     `db:"w"`
	StartingUsers      int     `db:"starting_users"`
	Ticks              int     `db:"n_time_steps"`
	Population         int     `db:"n_agents"`
	LifeSpan           int     `db:"life_span"`
	Resources          int     `db:"n_resources"`
	LearnRate          float64 `db:"learn_rate"`
	Attraction         float64 `db:"attraction"`
	Layout             string  `db:"resource_layout"`
	Mode               string  `db:"transmission_mech"`
	StopReason         string  `db:"stop_reason"`
	FinalPopulation    int     `db:"final_population"`
	FinalToolUsers     int     `db:"final_tool_users"`
	FinalTraitCarriers int     `db:"final_trait_carriers"`
	Births             int     `db:"births"`
	Deaths             int     `db:"deaths"`
}

func toRunRow(s engine.RunSummary) runRow {
	return runRow{
		RunID:              s.RunID,
		Datetime:           s.StartedAt.UTC().Format(time.RFC3339Nano),
		Seed:               s.Seed,
		Height:             s.Height,
		Width:              s.Width,
		StartingUsers:      s.StartingUsers,
		Ticks:              s.Ticks,
		Population:         s.Population,
		LifeSpan:           s.LifeSpan,
		Resources:          s.Resources,
		LearnRate:          s.LearnRate,
		Attraction:         s.Attraction,
		Layout:             s.Layout,
		Mode:               s.Mode,
		StopReason:         s.StopReason,
		FinalPopulation:    s.FinalPopulation,
		FinalToolUsers:     s.FinalToolUsers,
		FinalTraitCarriers: s.FinalTraitCarriers,
		Births:             s.Births,
		Deaths:             s.Deaths,
	}
}

func (r runRow) summary() (engine.RunSummary, error) {
	started, err := time.Parse(time.RFC3339Nano, r.Datetime)
	if err != nil {
		return engine.RunSummary{}, fmt.Errorf("parse datetime: %w", err)
	}
	return engine.RunSummary{
		RunID:              r.RunID,
		StartedAt:          started,
		Seed:               r.Seed,
		Height:             r.Height,
		Width:              r.Width,
		StartingUsers:      r.StartingUsers,
		Ticks:              r.Ticks,
		Population:         r.Population,
		LifeSpan:           r.LifeSpan,
		Resources:          r.Resources,
		LearnRate:          r.LearnRate,
		Attraction:         r.Attraction,
		Layout:             r.Layout,
		Mode:               r.Mode,
		StopReason:         r.StopReason,
		FinalPopulation:    r.FinalPopulation,
		FinalToolUsers:     r.FinalToolUsers,
		FinalTraitCarriers: r.FinalTraitCarriers,
		Births:             r.Births,
		Deaths:             r.Deaths,
	}, nil
}

// SaveRun writes a finished run in a single transaction. Saving the same
// run id twice fails.
func (db *DB) SaveRun(res *engine.Result) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	runID := res.Summary.RunID
	_, err = tx.NamedExec(`INSERT INTO runs
		(run_id, datetime, seed, h, w, starting_users, n_time_steps, n_agents,
		 life_span, n_resources, learn_rate, attraction, resource_layout,
		 transmission_mech, stop_reason, final_population, final_tool_users,
		 final_trait_carriers, births, deaths)
		VALUES (:run_id, :datetime, :seed, :h, :w, :starting_users, :n_time_steps, :n_agents,
		 :life_span, :n_resources, :learn_rate, :attraction, :resource_layout,
		 :transmission_mech, :stop_reason, :final_population, :final_tool_users,
		 :final_trait_carriers, :births, :deaths)`, toRunRow(res.Summary))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO nodes
		(run_id, id, living, tool_user, learned_tool_use, tool_user_encounters,
		 proximity_associations, age_learned_tool_use, time_step_learned,
		 learning_method, age, mother, mother_tool_user, hair)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, n := range res.Nodes {
		var mother sql.NullInt64
		if n.MotherID != agents.UnknownMother {
			mother = sql.NullInt64{Int64: int64(n.MotherID), Valid: true}
		}
		_, err := stmt.Exec(
			runID, int64(n.ID), n.Alive, n.ToolUser, n.Learned.String(),
			n.ToolUserEncounters, n.ProximityAssociations, n.AgeLearned,
			n.TickLearned, n.Method, n.Age, mother, n.MotherToolUser, int(n.Hair),
		)
		if err != nil {
			return fmt.Errorf("insert node %d: %w", n.ID, err)
		}
	}

	if err := insertEdges(tx, "social_edges", runID, res.SocialEdges); err != nil {
		return err
	}
	if err := insertEdges(tx, "ancestry_edges", runID, res.AncestryEdges); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run saved", "run_id", runID, "nodes", len(res.Nodes),
		"social_edges", len(res.SocialEdges), "ancestry_edges", len(res.AncestryEdges))
	return nil
}

func insertEdges(tx *sqlx.Tx, table, runID string, edges []engine.Edge) error {
	stmt, err := tx.Preparex(`INSERT INTO ` + table + ` (run_id, seq, source, target) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range edges {
		if _, err := stmt.Exec(runID, i, int64(e.Source), int64(e.Target)); err != nil {
			return fmt.Errorf("insert %s %d: %w", table, i, err)
		}
	}
	return nil
}

// Write implements Sink.
func (db *DB) Write(res *engine.Result) error {
	return db.SaveRun(res)
}

// LoadRun returns the summary of one run.
func (db *DB) LoadRun(runID string) (engine.RunSummary, error) {
	var row runRow
	if err := db.conn.Get(&row, "SELECT * FROM runs WHERE run_id = ?", runID); err != nil {
		return engine.RunSummary{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	return row.summary()
}

// RunIDs lists stored runs, oldest first.
func (db *DB) RunIDs() ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, "SELECT run_id FROM runs ORDER BY datetime, run_id")
	return ids, err
}

// nodeRow is the subset of the nodes table read back by LoadNodes.
type nodeRow struct {
	ID       int64         `db:"id"`
	Living   bool          `db:"living"`
	ToolUser bool          `db:"tool_user"`
	Learned  string        `db:"learned_tool_use"`
	Method   string        `db:"learning_method"`
	Age      int           `db:"age"`
	Mother   sql.NullInt64 `db:"mother"`
	Hair     int           `db:"hair"`
}

// NodeSummary is a compact view of a stored node.
type NodeSummary struct {
	ID       agents.AgentID
	Alive    bool
	ToolUser bool
	Learned  string
	Method   string
	Age      int
	MotherID agents.AgentID
	Hair     agents.HairPattern
}

// LoadNodes returns a run's node records ordered by id.
func (db *DB) LoadNodes(runID string) ([]NodeSummary, error) {
	var rows []nodeRow
	err := db.conn.Select(&rows, `SELECT id, living, tool_user, learned_tool_use,
		learning_method, age, mother, hair FROM nodes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load nodes %s: %w", runID, err)
	}
	out := make([]NodeSummary, 0, len(rows))
	for _, r := range rows {
		n := NodeSummary{
			ID:       agents.AgentID(r.ID),
			Alive:    r.Living,
			ToolUser: r.ToolUser,
			Learned:  r.Learned,
			Method:   r.Method,
			Age:      r.Age,
			Hair:     agents.HairPattern(r.Hair),
		}
		if r.Mother.Valid {
			n.MotherID = agents.AgentID(r.Mother.Int64)
		}
		out = append(out, n)
	}
	return out, nil
}

// EdgeCounts returns the number of social and ancestry edges stored for a run.
func (db *DB) EdgeCounts(runID string) (social, ancestry int, err error) {
	if err = db.conn.Get(&social, "SELECT COUNT(*) FROM social_edges WHERE run_id = ?", runID); err != nil {
		return 0, 0, err
	}
	if err = db.conn.Get(&ancestry, "SELECT COUNT(*) FROM ancestry_edges WHERE run_id = ?", runID); err != nil {
		return 0, 0, err
	}
	return social, ancestry, nil
}
