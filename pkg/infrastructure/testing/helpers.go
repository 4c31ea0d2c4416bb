package testing

import (
	"github.com/vsinha/drawdown/pkg/application/services/pools"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/infrastructure/repositories/memory"
)

// Region used by the single-region fixtures
const Region = "World"

// Solution and pool ids of the fixtures
const (
	Afforestation entities.SolutionID = "afforestation"
	Peatlands     entities.SolutionID = "peatlands"
	Composting    entities.SolutionID = "composting"
	Recycling     entities.SolutionID = "recycling"

	DegradedForest = "degraded forest"
	OrganicWaste   = "organic waste"
	RecyclableMSW  = "recyclable waste"
)

// Horizon returns a horizon, panicking on invalid bounds
func Horizon(first, last entities.Year) entities.Horizon {
	h, err := entities.NewHorizon(first, last)
	if err != nil {
		panic(err)
	}
	return h
}

// Pool returns the PoolID of a fixture category in Region
func Pool(category string) entities.PoolID {
	return entities.PoolID{Category: category, Region: Region}
}

// MustStatic builds a static pool provider, panicking on error
func MustStatic(id entities.PoolID, unit string, capacity entities.Series) *pools.Static {
	p, err := pools.NewStatic(id, unit, capacity)
	if err != nil {
		panic(err)
	}
	return p
}

// MustOrdering builds a priority ordering, panicking on error
func MustOrdering(category string, policy entities.ResolutionPolicy, order ...entities.SolutionID) *entities.PriorityOrdering {
	o, err := entities.NewPriorityOrdering(category, order, policy)
	if err != nil {
		panic(err)
	}
	return o
}

// BuildDegradedForestTestData builds the two-solution land scenario: a
// degraded forest pool of 100 Mha per year over 2020-2022, afforestation
// asking for 80, 120 and 50 with top priority, peatlands asking for 30, 30
// and 60.
func BuildDegradedForestTestData() (*memory.SourceRepository, *memory.PoolRepository, *memory.PriorityRepository) {
	sourceRepo := memory.NewSourceRepository(2)
	poolRepo := memory.NewPoolRepository()
	priorityRepo := memory.NewPriorityRepository()

	solutions := []*memory.Solution{
		memory.NewSolution(Afforestation, map[string]entities.Series{
			Region: entities.SeriesFromSlice(2020, []float64{80, 120, 50}),
		}),
		memory.NewSolution(Peatlands, map[string]entities.Series{
			Region: entities.SeriesFromSlice(2020, []float64{30, 30, 60}),
		}),
	}
	for _, s := range solutions {
		if err := sourceRepo.Register(s); err != nil {
			panic(err)
		}
	}

	horizon := Horizon(2020, 2022)
	if err := poolRepo.AddProvider(MustStatic(Pool(DegradedForest), "Mha", entities.ConstantSeries(horizon, 100))); err != nil {
		panic(err)
	}

	if err := priorityRepo.LoadOrderings([]*entities.PriorityOrdering{
		MustOrdering(DegradedForest, entities.StrictPriority, Afforestation, Peatlands),
	}); err != nil {
		panic(err)
	}

	return sourceRepo, poolRepo, priorityRepo
}

// BuildOrganicWasteTestData builds the cross-pool waste scenario for a single
// year (2030): composting asks for 40 Mt of a 60 Mt organic pool, recycling
// asks for 30 Mt of a recyclable pool holding whatever composting left.
func BuildOrganicWasteTestData() (*memory.SourceRepository, *memory.PoolRepository, *memory.PriorityRepository) {
	sourceRepo := memory.NewSourceRepository(2)
	poolRepo := memory.NewPoolRepository()
	priorityRepo := memory.NewPriorityRepository()

	for _, s := range []*memory.Solution{
		memory.NewSolution(Composting, map[string]entities.Series{
			Region: entities.SeriesFromSlice(2030, []float64{40}),
		}),
		memory.NewSolution(Recycling, map[string]entities.Series{
			Region: entities.SeriesFromSlice(2030, []float64{30}),
		}),
	} {
		if err := sourceRepo.Register(s); err != nil {
			panic(err)
		}
	}

	horizon := Horizon(2030, 2030)
	base := entities.ConstantSeries(horizon, 60)
	organic := MustStatic(Pool(OrganicWaste), "Mt", base)
	recyclable, err := pools.NewResidual(Pool(RecyclableMSW), "Mt", organic,
		pools.Deduction{SolutionID: Composting, Pool: Pool(OrganicWaste)},
	)
	if err != nil {
		panic(err)
	}
	if err := poolRepo.LoadProviders([]repositories.ResourcePoolProvider{organic, recyclable}); err != nil {
		panic(err)
	}

	return sourceRepo, poolRepo, priorityRepo
}
