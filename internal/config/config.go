// Package config provides configuration loading for toolsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/toolsim/internal/agents"
	"github.com/talgya/toolsim/internal/engine"
	"github.com/talgya/toolsim/internal/logging"
	"github.com/talgya/toolsim/internal/world"
)

// Config contains all toolsim configuration settings.
type Config struct {
	Grid         GridConfig         `json:"grid" yaml:"grid"`
	Population   PopulationConfig   `json:"population" yaml:"population"`
	Transmission TransmissionConfig `json:"transmission" yaml:"transmission"`
	Resources    ResourceConfig     `json:"resources" yaml:"resources"`
	Run          RunConfig          `json:"run" yaml:"run"`
	Output       OutputConfig       `json:"output" yaml:"output"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
}

// GridConfig sizes the bounded grid.
type GridConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// PopulationConfig sizes the monkey population.
type PopulationConfig struct {
	// Size is Na, the initial and maximum live population.
	Size int `json:"size" yaml:"size"`

	// StartingToolUsers is the number of founders placed at the grid center.
	StartingToolUsers int `json:"starting_tool_users" yaml:"starting_tool_users"`

	// LifeSpan bounds the random starting age of naive monkeys.
	LifeSpan int `json:"life_span" yaml:"life_span"`
}

// TransmissionConfig selects how tool use spreads.
type TransmissionConfig struct {
	// Mode is "social", "inherited" or "resource_attraction".
	Mode string `json:"mode" yaml:"mode"`

	// LearnRate scales learning chance per encounter, in percent.
	LearnRate float64 `json:"learn_rate" yaml:"learn_rate"`
}

// ResourceConfig configures ToolResources. Only used in resource_attraction mode.
type ResourceConfig struct {
	Count int `json:"count" yaml:"count"`

	// Attraction is the percent chance per tick of stepping toward the
	// nearest resource.
	Attraction float64 `json:"attraction" yaml:"attraction"`

	// Layout is "uniform" or "clustered".
	Layout string `json:"layout" yaml:"layout"`
}

// RunConfig controls the run loop.
type RunConfig struct {
	// Seed for the run's random source. 0 draws one from crypto/rand.
	Seed int64 `json:"seed" yaml:"seed"`

	// MaxTicks is a hard tick ceiling. 0 disables it.
	MaxTicks int `json:"max_ticks" yaml:"max_ticks"`

	// ReportEvery is the progress log interval in ticks. 0 disables it.
	ReportEvery int `json:"report_every" yaml:"report_every"`
}

// OutputConfig selects the output sinks.
type OutputConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	CSV      bool   `json:"csv" yaml:"csv"`
	Compress bool   `json:"compress" yaml:"compress"`

	// SQLite is a database path. Empty disables the SQLite sink.
	SQLite string `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
}

// LoggingConfig configures log verbosity.
type LoggingConfig struct {
	// Level is "warn", "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config matching the reference batch setup.
func Default() *Config {
	p := engine.DefaultParams()
	return &Config{
		Grid: GridConfig{Width: p.Width, Height: p.Height},
		Population: PopulationConfig{
			Size:              p.Population,
			StartingToolUsers: p.StartingToolUsers,
			LifeSpan:          p.LifeSpan,
		},
		Transmission: TransmissionConfig{
			Mode:      string(p.Mode),
			LearnRate: p.LearnRate,
		},
		Resources: ResourceConfig{
			Layout: string(world.LayoutUniform),
		},
		Run: RunConfig{
			MaxTicks:    p.MaxTicks,
			ReportEvery: 500,
		},
		Output: OutputConfig{
			Dir: "runs",
			CSV: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load returns the defaults overlaid with path (if non-empty) and then
// with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. Keys the file omits
// keep their default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := agents.ParseMode(c.Transmission.Mode); err != nil {
		return err
	}
	if _, err := world.ParseLayout(c.Resources.Layout); err != nil {
		return err
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)
	}
	if c.Run.ReportEvery < 0 {
		return fmt.Errorf("report_every must be non-negative, got %d", c.Run.ReportEvery)
	}
	if c.Transmission.Mode == string(agents.ModeResourceAttraction) && c.Resources.Count < 1 {
		return fmt.Errorf("resources.count must be at least 1 in %s mode, got %d", c.Transmission.Mode, c.Resources.Count)
	}
	if c.Output.Compress && !c.Output.CSV {
		return fmt.Errorf("output.compress requires output.csv")
	}
	p, err := c.Params()
	if err != nil {
		return err
	}
	return p.Validate()
}

// Params converts the configuration into simulation parameters.
func (c *Config) Params() (engine.Params, error) {
	mode, err := agents.ParseMode(c.Transmission.Mode)
	if err != nil {
		return engine.Params{}, err
	}
	layout, err := world.ParseLayout(c.Resources.Layout)
	if err != nil {
		return engine.Params{}, err
	}
	p := engine.Params{
		Width:             c.Grid.Width,
		Height:            c.Grid.Height,
		Population:        c.Population.Size,
		StartingToolUsers: c.Population.StartingToolUsers,
		LifeSpan:          c.Population.LifeSpan,
		Mode:              mode,
		LearnRate:         c.Transmission.LearnRate,
		Attraction:        c.Resources.Attraction,
		Layout:            layout,
		MaxTicks:          c.Run.MaxTicks,
		Seed:              c.Run.Seed,
	}
	if mode == agents.ModeResourceAttraction {
		p.Resources = c.Resources.Count
	}
	return p, nil
}

// Set assigns a single dotted key such as "transmission.learn_rate".
// Sweep plans use it to vary one parameter at a time.
func (c *Config) Set(key, value string) error {
	switch key {
	case "grid.width":
		return setInt(&c.Grid.Width, key, value)
	case "grid.height":
		return setInt(&c.Grid.Height, key, value)
	case "population.size":
		return setInt(&c.Population.Size, key, value)
	case "population.starting_tool_users":
		return setInt(&c.Population.StartingToolUsers, key, value)
	case "population.life_span":
		return setInt(&c.Population.LifeSpan, key, value)
	case "transmission.mode":
		c.Transmission.Mode = value
	case "transmission.learn_rate":
		return setFloat(&c.Transmission.LearnRate, key, value)
	case "resources.count":
		return setInt(&c.Resources.Count, key, value)
	case "resources.attraction":
		return setFloat(&c.Resources.Attraction, key, value)
	case "resources.layout":
		c.Resources.Layout = value
	case "run.seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Run.Seed = n
	case "run.max_ticks":
		return setInt(&c.Run.MaxTicks, key, value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// envKeys maps TOOLSIM_* variables to config keys.
var envKeys = []struct {
	env string
	key string
}{
	{"TOOLSIM_GRID_WIDTH", "grid.width"},
	{"TOOLSIM_GRID_HEIGHT", "grid.height"},
	{"TOOLSIM_POPULATION", "population.size"},
	{"TOOLSIM_STARTING_TOOL_USERS", "population.starting_tool_users"},
	{"TOOLSIM_MODE", "transmission.mode"},
	{"TOOLSIM_LEARN_RATE", "transmission.learn_rate"},
	{"TOOLSIM_RESOURCES", "resources.count"},
	{"TOOLSIM_ATTRACTION", "resources.attraction"},
	{"TOOLSIM_SEED", "run.seed"},
	{"TOOLSIM_MAX_TICKS", "run.max_ticks"},
}

// applyEnvOverrides applies environment variable overrides to the config.
// A value that fails to parse is an error naming the variable.
func applyEnvOverrides(c *Config) error {
	for _, e := range envKeys {
		if v := os.Getenv(e.env); v != "" {
			if err := c.Set(e.key, v); err != nil {
				return fmt.Errorf("%s: %w", e.env, err)
			}
		}
	}
	if v := os.Getenv("TOOLSIM_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("TOOLSIM_SQLITE"); v != "" {
		c.Output.SQLite = v
	}
	if v := os.Getenv("TOOLSIM_COMPRESS"); v != "" {
		c.Output.Compress = v == "true" || v == "1"
	}
	if v := os.Getenv("TOOLSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}
