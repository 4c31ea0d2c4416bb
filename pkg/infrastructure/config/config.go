// Package config loads scenario configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
)

// Config holds all scenario configuration.
type Config struct {
	Name        string            `yaml:"name"`
	Horizon     HorizonConfig     `yaml:"horizon"`
	Integration IntegrationConfig `yaml:"integration"`
	Energy      EnergyConfig      `yaml:"energy"`
	Orderings   []OrderingConfig  `yaml:"orderings"`
	Scenario    ScenarioConfig    `yaml:"scenario"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HorizonConfig is the inclusive year range of a run.
type HorizonConfig struct {
	FirstYear int `yaml:"first_year"`
	LastYear  int `yaml:"last_year"`
}

// IntegrationConfig bounds the fixed-point iteration.
type IntegrationConfig struct {
	MaxIterations        int     `yaml:"max_iterations"`
	ConvergenceTolerance float64 `yaml:"convergence_tolerance"`
	CapacityTolerance    float64 `yaml:"capacity_tolerance"`
	Workers              int     `yaml:"workers"`
}

// EnergyConfig converts energy output to feedstock mass.
type EnergyConfig struct {
	LHV        float64 `yaml:"lhv_gj_per_tonne"`
	Efficiency float64 `yaml:"efficiency"`
}

// OrderingConfig ranks the solutions competing for one pool category.
type OrderingConfig struct {
	Category string   `yaml:"category"`
	Policy   string   `yaml:"policy"` // strict-priority, pro-rata, independent-cap
	Order    []string `yaml:"order"`
}

// Scenario kinds
const (
	// KindStatic reads pools and claims straight from the scenario CSVs
	KindStatic = "static"
	// KindWaste builds the municipal solid waste topology from the total
	// waste rows of pools.csv; claims follow the waste section
	KindWaste = "waste"
)

// ScenarioConfig locates the scenario CSV files.
type ScenarioConfig struct {
	Dir   string      `yaml:"dir"`
	Kind  string      `yaml:"kind"`
	Waste WasteConfig `yaml:"waste"`
}

// WasteConfig describes the waste topology of a waste scenario. Claimant
// lists are in priority order.
type WasteConfig struct {
	TotalCategory      string   `yaml:"total_category"`
	OrganicShare       float64  `yaml:"organic_share"`
	RecyclableShare    float64  `yaml:"recyclable_share"`
	OrganicReducers    []string `yaml:"organic_reducers,omitempty"`
	RecyclableReducers []string `yaml:"recyclable_reducers,omitempty"`
	Organic            []string `yaml:"organic,omitempty"`
	Recyclable         []string `yaml:"recyclable,omitempty"`
	Remainder          []string `yaml:"remainder,omitempty"`
}

// DatabaseConfig locates the report history database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Name: "drawdown",
		Horizon: HorizonConfig{
			FirstYear: 2014,
			LastYear:  2060,
		},
		Integration: IntegrationConfig{
			MaxIterations:        10,
			ConvergenceTolerance: 1e-9,
			CapacityTolerance:    entities.CapacityTolerance,
			Workers:              1,
		},
		Energy: EnergyConfig{
			LHV:        10,
			Efficiency: 0.25,
		},
		Scenario: ScenarioConfig{
			Dir:  "scenario",
			Kind: KindStatic,
			Waste: WasteConfig{
				TotalCategory: "msw total",
			},
		},
		Database: DatabaseConfig{
			Path: "data/drawdown.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if cfg.Scenario.Dir != "" && !filepath.IsAbs(cfg.Scenario.Dir) {
		cfg.Scenario.Dir = filepath.Join(filepath.Dir(path), cfg.Scenario.Dir)
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DRAWDOWN_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DRAWDOWN_SCENARIO"); v != "" {
		c.Scenario.Dir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.HorizonRange(); err != nil {
		return err
	}
	if c.Integration.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.Integration.MaxIterations)
	}
	if c.Integration.ConvergenceTolerance < 0 {
		return fmt.Errorf("convergence_tolerance cannot be negative")
	}
	if c.Integration.CapacityTolerance < 0 {
		return fmt.Errorf("capacity_tolerance cannot be negative")
	}
	if c.Integration.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if _, err := c.EnergyContext(); err != nil {
		return err
	}
	if _, err := c.PriorityOrderings(); err != nil {
		return err
	}
	switch c.Scenario.Kind {
	case "", KindStatic:
	case KindWaste:
		w := c.Scenario.Waste
		if w.TotalCategory == "" {
			return fmt.Errorf("waste scenario needs a total_category")
		}
		if w.OrganicShare < 0 || w.RecyclableShare < 0 || w.OrganicShare+w.RecyclableShare > 1 {
			return fmt.Errorf("waste shares must be non-negative and sum to at most 1, got %g and %g",
				w.OrganicShare, w.RecyclableShare)
		}
	default:
		return fmt.Errorf("unknown scenario kind %q", c.Scenario.Kind)
	}
	return nil
}

// SolutionIDs converts configured solution names
func SolutionIDs(names []string) []entities.SolutionID {
	if len(names) == 0 {
		return nil
	}
	out := make([]entities.SolutionID, len(names))
	for i, n := range names {
		out[i] = entities.SolutionID(n)
	}
	return out
}

// HorizonRange returns the run horizon.
func (c *Config) HorizonRange() (entities.Horizon, error) {
	return entities.NewHorizon(entities.Year(c.Horizon.FirstYear), entities.Year(c.Horizon.LastYear))
}

// EnergyContext returns the energy to mass conversion context.
func (c *Config) EnergyContext() (units.Context, error) {
	return units.NewContext(c.Energy.LHV, c.Energy.Efficiency)
}

// PriorityOrderings builds the configured orderings.
func (c *Config) PriorityOrderings() ([]*entities.PriorityOrdering, error) {
	seen := make(map[string]bool, len(c.Orderings))
	out := make([]*entities.PriorityOrdering, 0, len(c.Orderings))
	for _, oc := range c.Orderings {
		if seen[oc.Category] {
			return nil, fmt.Errorf("ordering for %q configured twice", oc.Category)
		}
		seen[oc.Category] = true

		policy, err := entities.ParseResolutionPolicy(oc.Policy)
		if err != nil {
			return nil, fmt.Errorf("ordering %q: %w", oc.Category, err)
		}
		ordering, err := entities.NewPriorityOrdering(oc.Category, SolutionIDs(oc.Order), policy)
		if err != nil {
			return nil, err
		}
		out = append(out, ordering)
	}
	return out, nil
}
