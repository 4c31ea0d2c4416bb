package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/drawdown/pkg/application/dto"
	"github.com/vsinha/drawdown/pkg/application/services/integration"
	"github.com/vsinha/drawdown/pkg/application/services/scenario"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
	"github.com/vsinha/drawdown/pkg/infrastructure/config"
	"github.com/vsinha/drawdown/pkg/infrastructure/events"
	"github.com/vsinha/drawdown/pkg/infrastructure/persistence/sqlite"
	"github.com/vsinha/drawdown/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/drawdown/pkg/interfaces/cli/output"
)

// DefaultConfigFile is looked up inside the scenario directory
const DefaultConfigFile = "drawdown.yaml"

// Config holds configuration for the integrate command
type Config struct {
	ConfigFile    string
	ScenarioDir   string
	OutputDir     string
	Format        string
	DBPath        string
	RunID         string
	MaxIterations int
	Workers       int
	Places        int
	NoHistory     bool
	Verbose       bool
}

// IntegrateCommand loads a scenario, runs the integration and reports it
type IntegrateCommand struct {
	config Config
	logger *zap.Logger
	out    io.Writer
}

// NewIntegrateCommand creates a new integrate command with the given configuration
func NewIntegrateCommand(config Config, logger *zap.Logger, out io.Writer) *IntegrateCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	return &IntegrateCommand{config: config, logger: logger, out: out}
}

// Execute runs the integrate command
func (c *IntegrateCommand) Execute(ctx context.Context) (*dto.IntegrationResult, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	horizon, err := cfg.HorizonRange()
	if err != nil {
		return nil, err
	}
	energy, err := cfg.EnergyContext()
	if err != nil {
		return nil, err
	}
	orderings, err := cfg.PriorityOrderings()
	if err != nil {
		return nil, err
	}

	c.logger.Info("loading scenario", zap.String("dir", cfg.Scenario.Dir), zap.String("kind", cfg.Scenario.Kind))
	sc, err := c.buildScenario(cfg, horizon, energy, orderings)
	if err != nil {
		return nil, err
	}
	setup, err := sc.Setup(c.config.RunID)
	if err != nil {
		return nil, err
	}

	validation := integration.ValidateSetup(setup)
	for _, warning := range validation.Warnings {
		c.logger.Warn("scenario warning", zap.String("warning", warning))
	}
	if err := validation.Err(); err != nil {
		return nil, err
	}

	store := events.NewInMemoryEventStore()
	if err := store.Subscribe([]string{events.ClaimClippedEvent}, &clipLogger{logger: c.logger}); err != nil {
		return nil, err
	}

	coordinator, err := integration.NewCoordinator(integration.Config{
		MaxIterations:        cfg.Integration.MaxIterations,
		ConvergenceTolerance: cfg.Integration.ConvergenceTolerance,
		CapacityTolerance:    cfg.Integration.CapacityTolerance,
		Workers:              cfg.Integration.Workers,
	}, integration.WithLogger(c.logger), integration.WithEventStore(store))
	if err != nil {
		return nil, err
	}

	run, err := integration.Initialize(ctx, setup)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := coordinator.Run(ctx, run)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if err := output.Generate(c.out, result, output.Config{
		Format:          c.config.Format,
		OutputDir:       c.config.OutputDir,
		Verbose:         c.config.Verbose,
		Places:          int32(c.config.Places),
		IntegrationTime: elapsed,
	}); err != nil {
		return nil, fmt.Errorf("error generating output: %w", err)
	}

	if !c.config.NoHistory && cfg.Database.Path != "" {
		if err := c.saveHistory(cfg, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// buildScenario loads the scenario CSVs and builds the scenario of the
// configured kind. Waste scenarios have no claims.csv.
func (c *IntegrateCommand) buildScenario(cfg *config.Config, horizon entities.Horizon, energy units.Context, orderings []*entities.PriorityOrdering) (*scenario.Scenario, error) {
	loader := csv.NewLoader()
	builder := scenario.NewBuilder(horizon, energy)

	if cfg.Scenario.Kind != config.KindWaste {
		data, err := loader.LoadScenario(cfg.Scenario.Dir)
		if err != nil {
			return nil, fmt.Errorf("error loading scenario: %w", err)
		}
		c.logDataLoaded(data)
		sc, err := builder.Build(data, orderings)
		if err != nil {
			return nil, fmt.Errorf("error building scenario: %w", err)
		}
		return sc, nil
	}

	adoption, err := loader.LoadAdoption(filepath.Join(cfg.Scenario.Dir, csv.AdoptionFile))
	if err != nil {
		return nil, fmt.Errorf("error loading scenario: %w", err)
	}
	pools, err := loader.LoadPools(filepath.Join(cfg.Scenario.Dir, csv.PoolsFile))
	if err != nil {
		return nil, fmt.Errorf("error loading scenario: %w", err)
	}
	data := repositories.ScenarioData{Adoption: adoption, Pools: pools}
	c.logDataLoaded(data)

	w := cfg.Scenario.Waste
	sc, err := builder.BuildWaste(data, scenario.WasteSpec{
		TotalCategory:      w.TotalCategory,
		OrganicShare:       w.OrganicShare,
		RecyclableShare:    w.RecyclableShare,
		OrganicReducers:    config.SolutionIDs(w.OrganicReducers),
		RecyclableReducers: config.SolutionIDs(w.RecyclableReducers),
		Organic:            config.SolutionIDs(w.Organic),
		Recyclable:         config.SolutionIDs(w.Recyclable),
		Remainder:          config.SolutionIDs(w.Remainder),
	}, orderings)
	if err != nil {
		return nil, fmt.Errorf("error building waste scenario: %w", err)
	}
	return sc, nil
}

func (c *IntegrateCommand) logDataLoaded(data repositories.ScenarioData) {
	c.logger.Debug("scenario loaded",
		zap.Int("adoption_rows", len(data.Adoption)),
		zap.Int("pool_rows", len(data.Pools)),
		zap.Int("claims", len(data.Claims)),
	)
}

// loadConfig reads the YAML configuration and applies flag overrides
func (c *IntegrateCommand) loadConfig() (*config.Config, error) {
	path := c.config.ConfigFile
	if path == "" && c.config.ScenarioDir != "" {
		path = filepath.Join(c.config.ScenarioDir, DefaultConfigFile)
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.config.ScenarioDir != "" {
		cfg.Scenario.Dir = c.config.ScenarioDir
	}
	if c.config.DBPath != "" {
		cfg.Database.Path = c.config.DBPath
	}
	if c.config.MaxIterations > 0 {
		cfg.Integration.MaxIterations = c.config.MaxIterations
	}
	if c.config.Workers > 0 {
		cfg.Integration.Workers = c.config.Workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *IntegrateCommand) saveHistory(cfg *config.Config, result *dto.IntegrationResult) error {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != sqlite.MemoryPath {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.Database.Path, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveReport(cfg.Name, result.Report); err != nil {
		return fmt.Errorf("error saving run history: %w", err)
	}
	c.logger.Info("run saved", zap.String("run_id", result.RunID), zap.String("db", cfg.Database.Path))
	return nil
}

// clipLogger logs clipped claims as they are published
type clipLogger struct {
	logger *zap.Logger
}

func (h *clipLogger) CanHandle(eventType string) bool {
	return eventType == events.ClaimClippedEvent
}

func (h *clipLogger) Handle(event events.Event) error {
	clipped, ok := event.Payload().(events.ClaimClipped)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", event.Type(), event.Payload())
	}
	h.logger.Debug("claim clipped",
		zap.Int("iteration", clipped.Iteration),
		zap.String("solution", string(clipped.SolutionID)),
		zap.String("pool", clipped.Pool.String()),
		zap.Int("years", clipped.YearsClipped),
		zap.Float64("overshoot", clipped.TotalOvershoot),
	)
	return nil
}
