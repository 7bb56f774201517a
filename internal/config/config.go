// Package config loads the YAML run configuration that drives a verification
// run: which variables to score, the time window, chunking and checkpoint
// cadence, and the external endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/gridverify/internal/router"
	"github.com/lox/gridverify/internal/spatial"
	"github.com/lox/gridverify/internal/verify"
)

type Config struct {
	Variables []Variable `yaml:"variables"`
	Window    Window     `yaml:"window"`
	Grid      GridSpec   `yaml:"grid"`

	ChunkRows  int        `yaml:"chunk_rows"`
	Workers    int        `yaml:"workers"`
	Checkpoint Checkpoint `yaml:"checkpoint"`

	RegionsFile  string `yaml:"regions_file"`
	StationsFile string `yaml:"stations_file"`

	Obs       Obs       `yaml:"obs"`
	Inventory Inventory `yaml:"inventory"`
	Output    Output    `yaml:"output"`
}

// Variable is one verified field and its scoring configuration.
type Variable struct {
	Name           string    `yaml:"name"`
	Thresholds     []float64 `yaml:"thresholds"`
	ProbBins       int       `yaml:"prob_bins"`
	EventThreshold float64   `yaml:"event_threshold"`
}

type Window struct {
	Start     time.Time `yaml:"start"`
	End       time.Time `yaml:"end"`
	InitHours []int     `yaml:"init_hours"`
	LeadHours []int     `yaml:"lead_hours"`
}

// GridSpec defines a regular lat/lon grid by origin and step.
type GridSpec struct {
	NI   int     `yaml:"ni"`
	NJ   int     `yaml:"nj"`
	Lat0 float64 `yaml:"lat0"`
	Lon0 float64 `yaml:"lon0"`
	DLat float64 `yaml:"dlat"`
	DLon float64 `yaml:"dlon"`
}

type Checkpoint struct {
	Path     string   `yaml:"path"`
	Interval Duration `yaml:"interval"`
}

// Duration parses YAML strings like "5m" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Obs struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

type Inventory struct {
	Host string `yaml:"host"`
	Root string `yaml:"root"`
}

type Output struct {
	DBPath       string   `yaml:"db_path"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// Load reads and validates a run configuration, applying defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ChunkRows == 0 {
		c.ChunkRows = 64
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Checkpoint.Interval == 0 {
		c.Checkpoint.Interval = Duration(5 * time.Minute)
	}
	if c.Checkpoint.Path == "" {
		c.Checkpoint.Path = "gridverify-checkpoint.db"
	}
	if c.Output.DBPath == "" {
		c.Output.DBPath = "gridverify.db"
	}
}

func (c *Config) validate() error {
	if len(c.Variables) == 0 {
		return fmt.Errorf("config: no variables defined")
	}
	seen := make(map[string]bool, len(c.Variables))
	for _, v := range c.Variables {
		if v.Name == "" {
			return fmt.Errorf("config: variable with empty name")
		}
		if seen[v.Name] {
			return fmt.Errorf("config: duplicate variable %q", v.Name)
		}
		seen[v.Name] = true
		if v.ProbBins < 0 {
			return fmt.Errorf("config: variable %q: negative prob_bins", v.Name)
		}
		for i := 1; i < len(v.Thresholds); i++ {
			if v.Thresholds[i] <= v.Thresholds[i-1] {
				return fmt.Errorf("config: variable %q: thresholds not strictly increasing", v.Name)
			}
		}
	}
	if !c.Window.Start.IsZero() && !c.Window.End.After(c.Window.Start) {
		return fmt.Errorf("config: window end must be after start")
	}
	for _, h := range c.Window.InitHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("config: init hour %d out of range", h)
		}
	}
	if c.Grid.NI < 0 || c.Grid.NJ < 0 {
		return fmt.Errorf("config: negative grid dimensions")
	}
	return nil
}

// Regions loads the verification region polygons, or none when no file is
// configured.
func (c *Config) Regions() ([]spatial.Region, error) {
	if c.RegionsFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(c.RegionsFile)
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}
	var regions []spatial.Region
	if err := yaml.Unmarshal(raw, &regions); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	return regions, nil
}

// Stations loads the observation station list, or none when no file is
// configured.
func (c *Config) Stations() ([]spatial.Station, error) {
	if c.StationsFile == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(c.StationsFile)
	if err != nil {
		return nil, fmt.Errorf("read stations: %w", err)
	}
	var stations []spatial.Station
	if err := yaml.Unmarshal(raw, &stations); err != nil {
		return nil, fmt.Errorf("parse stations: %w", err)
	}
	return stations, nil
}

// RouterConfigs maps each variable name to its scoring configuration in the
// form the chunk router consumes.
func (c *Config) RouterConfigs() router.Configs {
	out := make(router.Configs, len(c.Variables))
	for _, v := range c.Variables {
		out[v.Name] = verify.Config{
			Thresholds:     v.Thresholds,
			ProbBins:       v.ProbBins,
			EventThreshold: v.EventThreshold,
		}
	}
	return out
}
