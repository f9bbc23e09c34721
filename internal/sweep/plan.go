// Package sweep runs a parameter sweep: every combination of the varied
// config keys, replicated a fixed number of times, one run after another.
package sweep

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/toolsim/internal/config"
)

// Plan describes a sweep.
type Plan struct {
	// Iterations is the number of replicates per parameter combination.
	Iterations int `yaml:"iterations"`

	// Seed is the base seed; case i runs with Seed+i. 0 draws a base seed.
	Seed int64 `yaml:"seed"`

	// Vary lists the swept keys in expansion order. The last key varies
	// fastest.
	Vary []Axis `yaml:"vary"`
}

// Axis is one swept config key and its values.
type Axis struct {
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
}

// aliases are the short names accepted for common keys.
var aliases = map[string]string{
	"mode":                "transmission.mode",
	"learn_rate":          "transmission.learn_rate",
	"size":                "population.size",
	"population":          "population.size",
	"starting_tool_users": "population.starting_tool_users",
	"width":               "grid.width",
	"height":              "grid.height",
	"resources":           "resources.count",
	"attraction":          "resources.attraction",
	"layout":              "resources.layout",
}

// LoadPlan reads a plan from a YAML file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan parses and validates a YAML plan.
func ParsePlan(data []byte) (*Plan, error) {
	p := &Plan{Iterations: 1}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing sweep plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the plan and resolves key aliases in place.
func (p *Plan) Validate() error {
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", p.Iterations)
	}
	seen := make(map[string]bool, len(p.Vary))
	scratch := config.Default()
	for i := range p.Vary {
		a := &p.Vary[i]
		a.Key = resolveKey(a.Key)
		if seen[a.Key] {
			return fmt.Errorf("key %q varied twice", a.Key)
		}
		seen[a.Key] = true
		if len(a.Values) == 0 {
			return fmt.Errorf("key %q has no values", a.Key)
		}
		for _, v := range a.Values {
			if err := scratch.Set(a.Key, v); err != nil {
				return fmt.Errorf("vary: %w", err)
			}
		}
	}
	return nil
}

func resolveKey(k string) string {
	k = strings.TrimSpace(k)
	if full, ok := aliases[k]; ok {
		return full
	}
	return k
}

// Case is one run of a sweep.
type Case struct {
	Index     int
	Replicate int
	Settings  []Setting
	Config    *config.Config
}

// Setting is one key/value applied to a case.
type Setting struct {
	Key   string
	Value string
}

func (c Case) String() string {
	parts := make([]string, 0, len(c.Settings)+1)
	for _, s := range c.Settings {
		parts = append(parts, s.Key+"="+s.Value)
	}
	parts = append(parts, fmt.Sprintf("replicate=%d", c.Replicate))
	return strings.Join(parts, " ")
}

// Expand returns every case of the plan applied to base, in a deterministic
// order: combinations in odometer order, replicates innermost. Each case
// gets its own copy of base with run.seed set to baseSeed+index.
func (p *Plan) Expand(base *config.Config, baseSeed int64) ([]Case, error) {
	combos := [][]Setting{nil}
	for _, a := range p.Vary {
		next := make([][]Setting, 0, len(combos)*len(a.Values))
		for _, combo := range combos {
			for _, v := range a.Values {
				s := make([]Setting, len(combo), len(combo)+1)
				copy(s, combo)
				next = append(next, append(s, Setting{Key: a.Key, Value: v}))
			}
		}
		combos = next
	}

	cases := make([]Case, 0, len(combos)*p.Iterations)
	for _, combo := range combos {
		for r := 0; r < p.Iterations; r++ {
			cfg := *base
			for _, s := range combo {
				if err := cfg.Set(s.Key, s.Value); err != nil {
					return nil, err
				}
			}
			idx := len(cases)
			cfg.Run.Seed = baseSeed + int64(idx)
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("case %d (%v): %w", idx, combo, err)
			}
			cases = append(cases, Case{Index: idx, Replicate: r, Settings: combo, Config: &cfg})
		}
	}
	return cases, nil
}
