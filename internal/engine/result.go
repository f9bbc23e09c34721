package engine

import (
	"time"

	"github.com/talgya/toolsim/internal/agents"
)

// StopReason records why a run terminated.
type StopReason string

const (
	StopUnset       StopReason = ""
	StopThreshold   StopReason = "tool population threshold reached"
	StopNoUsers     StopReason = "no more users"
	StopAllDead     StopReason = "all agents dead"
	StopTickCeiling StopReason = "tick ceiling reached"
)

// RunSummary is the one-row description of a finished run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"datetime"`
	Seed          int64     `json:"seed"`
	Height        int       `json:"h"`
	Width         int       `json:"w"`
	StartingUsers int       `json:"starting_users"`
	Ticks         int       `json:"n_time_steps"`
	Population    int       `json:"n_agents"`
	LifeSpan      int       `json:"life_span"`
	Resources     int       `json:"n_resources"`
	LearnRate     float64   `json:"learn_rate"`
	Attraction    float64   `json:"attraction"`
	Layout        string    `json:"resource_layout"`
	Mode          string    `json:"transmission_mech"`
	StopReason    string    `json:"stop_reason"`

	FinalPopulation    int `json:"final_population"`
	FinalToolUsers     int `json:"final_tool_users"`
	FinalTraitCarriers int `json:"final_trait_carriers"`
	Births             int `json:"births"`
	Deaths             int `json:"deaths"`
}

// NodeRecord is the terminal snapshot of one monkey: taken at death, or at
// the end of the run for survivors.
type NodeRecord struct {
	ID                    agents.AgentID       `json:"id"`
	RunID                 string               `json:"run_id"`
	Alive                 bool                 `json:"living"`
	ToolUser              bool                 `json:"tool_user"`
	Learned               agents.LearnedStatus `json:"learned_tool_use"`
	ToolUserEncounters    int                  `json:"tool_user_encounters"`
	ProximityAssociations int                  `json:"proximity_associations"`
	AgeLearned            int                  `json:"age_learned_tool_use"`
	TickLearned           int                  `json:"time_step_learned"`
	Method                string               `json:"learning_method"`
	Age                   int                  `json:"age"`
	MotherID              agents.AgentID       `json:"mother"`
	MotherToolUser        bool                 `json:"mother_tool_user"`
	Hair                  agents.HairPattern   `json:"hair"`
}

// Edge is a directed relation between two monkeys.
type Edge struct {
	Source agents.AgentID `json:"source"`
	Target agents.AgentID `json:"target"`
}

// Result is everything a finished run exposes to output sinks.
type Result struct {
	Summary       RunSummary   `json:"summary"`
	Nodes         []NodeRecord `json:"nodes"`
	SocialEdges   []Edge       `json:"social_edges"`
	AncestryEdges []Edge       `json:"ancestry_edges"`
}

func snapshotNode(runID string, m *agents.Monkey) NodeRecord {
	return NodeRecord{
		ID:                    m.ID,
		RunID:                 runID,
		Alive:                 m.Alive,
		ToolUser:              m.ToolUser,
		Learned:               m.Learned,
		ToolUserEncounters:    m.ToolUserEncounters,
		ProximityAssociations: m.ProximityAssociations,
		AgeLearned:            m.AgeLearned,
		TickLearned:           m.TickLearned,
		Method:                m.TransmissionMethod,
		Age:                   m.Age,
		MotherID:              m.MotherID,
		MotherToolUser:        m.MotherToolUser,
		Hair:                  m.Hair,
	}
}
