package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vsinha/drawdown/pkg/application/services/integration"
	"github.com/vsinha/drawdown/pkg/application/services/regional"
	"github.com/vsinha/drawdown/pkg/application/services/waste"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
	"github.com/vsinha/drawdown/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/drawdown/pkg/interfaces/cli/output"
)

func main() {
	ctx := context.Background()
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	horizon, err := entities.NewHorizon(2030, 2032)
	if err != nil {
		logger.Fatal("horizon", zap.Error(err))
	}

	// Global trajectories, split between two regions
	shares := regional.ConstantShares(horizon, map[string]float64{
		regional.OECD90: 0.4,
		regional.Asia:   0.6,
	})
	global := map[entities.SolutionID]entities.Series{
		"msw-total":          entities.SeriesFromSlice(2030, []float64{500, 520, 540}),
		"reduced-food-waste": entities.SeriesFromSlice(2030, []float64{20, 30, 40}),
		"composting":         entities.SeriesFromSlice(2030, []float64{120, 140, 160}),
		"recycling":          entities.SeriesFromSlice(2030, []float64{60, 70, 80}),
		"waste-to-energy":    entities.SeriesFromSlice(2030, []float64{300, 320, 340}), // TWh
	}
	byRegion := make(map[entities.SolutionID]map[string]entities.Series, len(global))
	for id, series := range global {
		split, err := regional.Disaggregate(series, shares)
		if err != nil {
			logger.Fatal("disaggregate", zap.String("solution", string(id)), zap.Error(err))
		}
		byRegion[id] = split
	}

	sources := memory.NewSourceRepository(len(global) - 1)
	for id, adoption := range byRegion {
		if id == "msw-total" {
			continue
		}
		if err := sources.Register(memory.NewSolution(id, adoption)); err != nil {
			logger.Fatal("register", zap.Error(err))
		}
	}
	allSources, err := sources.GetAllSources()
	if err != nil {
		logger.Fatal("sources", zap.Error(err))
	}

	var configs []waste.Config
	for _, region := range shares.Regions() {
		configs = append(configs, waste.Config{
			Region:          region,
			Total:           byRegion["msw-total"][region],
			OrganicShare:    0.45,
			RecyclableShare: 0.25,
			OrganicReducers: []entities.SolutionID{"reduced-food-waste"},
			Organic:         []waste.Claimant{{SolutionID: "composting"}},
			Recyclable:      []waste.Claimant{{SolutionID: "recycling"}},
			Remainder:       []waste.Claimant{{SolutionID: "waste-to-energy", Unit: units.TWh}},
			Energy:          units.DefaultMSWContext,
		})
	}
	topo, err := waste.BuildRegions(configs)
	if err != nil {
		logger.Fatal("waste topology", zap.Error(err))
	}
	setup := integration.Setup{
		RunID:     "waste-example",
		Horizon:   horizon,
		Sources:   allSources,
		Providers: topo.Providers,
		Claims:    topo.Claims,
		Orderings: topo.Orderings,
	}

	run, err := integration.Initialize(ctx, setup)
	if err != nil {
		logger.Fatal("initialize", zap.Error(err))
	}
	coordinator, err := integration.NewCoordinator(integration.DefaultConfig(), integration.WithLogger(logger))
	if err != nil {
		logger.Fatal("coordinator", zap.Error(err))
	}

	fmt.Println("Integrating waste solutions across regions...")
	result, err := coordinator.Run(ctx, run)
	if err != nil {
		logger.Fatal("integration failed", zap.Error(err))
	}

	if err := output.Generate(os.Stdout, result, output.Config{Format: "text", Places: 2, Verbose: true}); err != nil {
		logger.Fatal("output", zap.Error(err))
	}

	for _, id := range []entities.SolutionID{"composting", "waste-to-energy"} {
		total := make(map[string]entities.Series)
		for _, region := range shares.Regions() {
			if s, ok := result.AdoptionOf(id, region); ok {
				total[region] = s
			}
		}
		world, err := regional.Aggregate(total)
		if err != nil {
			logger.Fatal("aggregate", zap.Error(err))
		}
		fmt.Printf("%s world adoption: %s\n", id, world)
	}
}
