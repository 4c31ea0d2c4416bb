package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vsinha/drawdown/pkg/application/services/pools"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/infrastructure/events"
	"github.com/vsinha/drawdown/pkg/infrastructure/repositories/memory"
	testhelpers "github.com/vsinha/drawdown/pkg/infrastructure/testing"
)

func buildSetup(
	t *testing.T,
	horizon entities.Horizon,
	sourceRepo repositories.SourceRepository,
	poolRepo repositories.PoolRepository,
	priorityRepo repositories.PriorityRepository,
	claims []ClaimSpec,
) Setup {
	t.Helper()

	sources, err := sourceRepo.GetAllSources()
	require.NoError(t, err)
	providers, err := poolRepo.GetAllProviders()
	require.NoError(t, err)
	orderings, err := priorityRepo.GetAllOrderings()
	require.NoError(t, err)

	return Setup{
		Horizon:   horizon,
		Sources:   sources,
		Providers: providers,
		Claims:    claims,
		Orderings: orderings,
	}
}

func newCoordinator(t *testing.T, config Config, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := NewCoordinator(config, opts...)
	require.NoError(t, err)
	return c
}

func degradedForestRun(t *testing.T) (*RunContext, *memory.SourceRepository) {
	t.Helper()
	sourceRepo, poolRepo, priorityRepo := testhelpers.BuildDegradedForestTestData()
	pool := testhelpers.Pool(testhelpers.DegradedForest)
	setup := buildSetup(t, testhelpers.Horizon(2020, 2022), sourceRepo, poolRepo, priorityRepo, []ClaimSpec{
		{SolutionID: testhelpers.Afforestation, Region: testhelpers.Region, Pool: pool},
		{SolutionID: testhelpers.Peatlands, Region: testhelpers.Region, Pool: pool},
	})
	run, err := Initialize(context.Background(), setup)
	require.NoError(t, err)
	return run, sourceRepo
}

func adoptionOf(t *testing.T, repo repositories.SourceRepository, id entities.SolutionID) entities.Series {
	t.Helper()
	src, err := repo.GetSource(id)
	require.NoError(t, err)
	s, err := src.Adoption(testhelpers.Region)
	require.NoError(t, err)
	return s
}

func assertSeries(t *testing.T, want []float64, first entities.Year, got entities.Series) {
	t.Helper()
	for i, w := range want {
		year := first + entities.Year(i)
		v, ok := got.Value(year)
		if assert.True(t, ok, "year %d should be defined", year) {
			assert.InDelta(t, w, v, 1e-9, "year %d", year)
		}
	}
}

func TestCoordinator_DegradedForest(t *testing.T) {
	run, sourceRepo := degradedForestRun(t)
	coordinator := newCoordinator(t, DefaultConfig())

	result, err := coordinator.Run(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, entities.StateConverged, coordinator.State())
	assert.True(t, result.Converged())
	assert.Equal(t, 2, result.Summary.Iterations)
	assert.Equal(t,
		[]entities.SolutionID{testhelpers.Afforestation, testhelpers.Peatlands},
		result.Summary.ClippedSolutions,
	)

	assertSeries(t, []float64{80, 100, 50}, 2020, adoptionOf(t, sourceRepo, testhelpers.Afforestation))
	assertSeries(t, []float64{20, 0, 50}, 2020, adoptionOf(t, sourceRepo, testhelpers.Peatlands))

	pool := testhelpers.Pool(testhelpers.DegradedForest)
	rec, ok := result.Report.Lookup(2, testhelpers.Peatlands, pool, 2021)
	require.True(t, ok)
	assert.True(t, rec.Clipped)
	assert.InDelta(t, 30, rec.Overshoot, 1e-9)
	assert.InDelta(t, 0, rec.AdjustmentFactor, 1e-9)

	rec, ok = result.Report.Lookup(2, testhelpers.Afforestation, pool, 2020)
	require.True(t, ok)
	assert.False(t, rec.Clipped)
	assert.Equal(t, 1.0, rec.AdjustmentFactor)

	overshoot := result.Report.TotalOvershoot()
	assert.InDelta(t, 20, overshoot[testhelpers.Afforestation], 1e-9)
	assert.InDelta(t, 50, overshoot[testhelpers.Peatlands], 1e-9)
}

func TestCoordinator_CapacityInvariant(t *testing.T) {
	run, _ := degradedForestRun(t)
	coordinator := newCoordinator(t, DefaultConfig())

	result, err := coordinator.Run(context.Background(), run)
	require.NoError(t, err)

	for iteration := 1; iteration <= result.Summary.Iterations; iteration++ {
		granted := make(map[entities.Year]float64)
		for _, rec := range result.Report.IterationRecords(iteration) {
			granted[rec.Year] += rec.Granted
			assert.LessOrEqual(t, rec.Granted, rec.Requested+entities.CapacityTolerance)
		}
		for year, total := range granted {
			assert.LessOrEqual(t, total, 100+entities.CapacityTolerance, "iteration %d year %d", iteration, year)
		}
	}
}

func TestCoordinator_Idempotent(t *testing.T) {
	run, sourceRepo := degradedForestRun(t)
	coordinator := newCoordinator(t, DefaultConfig())

	_, err := coordinator.Run(context.Background(), run)
	require.NoError(t, err)

	src, err := sourceRepo.GetSource(testhelpers.Afforestation)
	require.NoError(t, err)
	writes := src.(*memory.Solution).Writes()

	pass, err := coordinator.Pass(context.Background(), run)
	require.NoError(t, err)

	pool := testhelpers.Pool(testhelpers.DegradedForest)
	for _, id := range []entities.SolutionID{testhelpers.Afforestation, testhelpers.Peatlands} {
		granted, ok := pass.Granted(id, pool)
		require.True(t, ok)
		assert.True(t, granted.WithinRelative(run.Granted(id, pool), DefaultConvergenceTolerance), "%s grants moved", id)
	}
	assert.Equal(t, writes, src.(*memory.Solution).Writes(), "a pass must not commit")
}

func TestCoordinator_OrganicWasteConvergesInThreePasses(t *testing.T) {
	sourceRepo, poolRepo, priorityRepo := testhelpers.BuildOrganicWasteTestData()
	setup := buildSetup(t, testhelpers.Horizon(2030, 2030), sourceRepo, poolRepo, priorityRepo, []ClaimSpec{
		{SolutionID: testhelpers.Composting, Region: testhelpers.Region, Pool: testhelpers.Pool(testhelpers.OrganicWaste)},
		{SolutionID: testhelpers.Recycling, Region: testhelpers.Region, Pool: testhelpers.Pool(testhelpers.RecyclableMSW)},
	})
	run, err := Initialize(context.Background(), setup)
	require.NoError(t, err)

	result, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, entities.StateConverged, result.Summary.State)
	assert.Equal(t, 3, result.Summary.Iterations)

	recyclable := testhelpers.Pool(testhelpers.RecyclableMSW)
	first, ok := result.Report.Lookup(1, testhelpers.Recycling, recyclable, 2030)
	require.True(t, ok)
	assert.InDelta(t, 30, first.Granted, 1e-9)
	assert.False(t, first.Clipped)

	second, ok := result.Report.Lookup(2, testhelpers.Recycling, recyclable, 2030)
	require.True(t, ok)
	assert.InDelta(t, 20, second.Granted, 1e-9)
	assert.True(t, second.Clipped)

	assertSeries(t, []float64{20}, 2030, adoptionOf(t, sourceRepo, testhelpers.Recycling))
	assertSeries(t, []float64{40}, 2030, adoptionOf(t, sourceRepo, testhelpers.Composting))
	assert.Equal(t, []entities.SolutionID{testhelpers.Recycling}, result.Summary.ClippedSolutions)
}

func oscillatingRun(t *testing.T) *RunContext {
	t.Helper()
	horizon := testhelpers.Horizon(2025, 2025)
	poolA := entities.PoolID{Category: "pool a"}
	poolB := entities.PoolID{Category: "pool b"}

	mirror := func(id entities.PoolID, rival entities.SolutionID, rivalPool entities.PoolID) repositories.ResourcePoolProvider {
		p, err := pools.NewFunc(id, "Mt", func(_ context.Context, state entities.UpstreamState) (entities.Series, error) {
			return entities.ConstantSeries(horizon, 100).Sub(state.Granted(rival, rivalPool)), nil
		})
		require.NoError(t, err)
		return p
	}

	run, err := Initialize(context.Background(), Setup{
		Horizon: horizon,
		Sources: []repositories.AdoptionSource{
			memory.NewSolution("a", map[string]entities.Series{"": entities.ConstantSeries(horizon, 100)}),
			memory.NewSolution("b", map[string]entities.Series{"": entities.ConstantSeries(horizon, 100)}),
		},
		Providers: []repositories.ResourcePoolProvider{
			mirror(poolA, "b", poolB),
			mirror(poolB, "a", poolA),
		},
		Claims: []ClaimSpec{
			{SolutionID: "a", Pool: poolA},
			{SolutionID: "b", Pool: poolB},
		},
	})
	require.NoError(t, err)
	return run
}

func TestCoordinator_OscillationHitsMaxIterations(t *testing.T) {
	run := oscillatingRun(t)
	config := DefaultConfig()
	coordinator := newCoordinator(t, config)

	result, err := coordinator.Run(context.Background(), run)
	require.NoError(t, err)

	assert.Equal(t, entities.StateMaxIterationsExceeded, coordinator.State())
	assert.False(t, result.Converged())
	assert.Equal(t, config.MaxIterations, result.Summary.Iterations)
	require.Len(t, result.Report.WarningsOf(entities.ConvergenceWarning), 1)

	// even number of passes ends on the starved half of the cycle
	adoption, ok := result.AdoptionOf("a", "")
	require.True(t, ok)
	assertSeries(t, []float64{0}, 2025, adoption)
}

func TestCoordinator_MaxIterationsIsConfigurable(t *testing.T) {
	run := oscillatingRun(t)
	config := DefaultConfig()
	config.MaxIterations = 3

	result, err := newCoordinator(t, config).Run(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Summary.Iterations)
	assert.Equal(t, entities.StateMaxIterationsExceeded, result.Summary.State)
}

func TestCoordinator_ZeroPool(t *testing.T) {
	horizon := testhelpers.Horizon(2020, 2021)
	pool := entities.PoolID{Category: "ocean", Region: "Asia"}
	seaweed := memory.NewSolution("seaweed", map[string]entities.Series{
		"Asia": entities.SeriesFromSlice(2020, []float64{5, 7}),
	})

	run, err := Initialize(context.Background(), Setup{
		Horizon:   horizon,
		Sources:   []repositories.AdoptionSource{seaweed},
		Providers: []repositories.ResourcePoolProvider{testhelpers.MustStatic(pool, "km2", entities.ConstantSeries(horizon, 0))},
		Claims:    []ClaimSpec{{SolutionID: "seaweed", Region: "Asia", Pool: pool}},
	})
	require.NoError(t, err)

	result, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)
	assert.True(t, result.Converged())

	adoption, err := seaweed.Adoption("Asia")
	require.NoError(t, err)
	assertSeries(t, []float64{0, 0}, 2020, adoption)
	assert.Equal(t, []entities.SolutionID{"seaweed"}, result.Summary.ClippedSolutions)
}

func TestCoordinator_NotApplicableCapacityGrantsNothing(t *testing.T) {
	horizon := testhelpers.Horizon(2020, 2021)
	pool := entities.PoolID{Category: "peat"}
	capacity := entities.SeriesFromSlice(2020, []float64{10}).WithNotApplicable(2021)
	peat := memory.NewSolution("peat", map[string]entities.Series{
		"": entities.SeriesFromSlice(2020, []float64{4, 4}),
	})

	run, err := Initialize(context.Background(), Setup{
		Horizon:   horizon,
		Sources:   []repositories.AdoptionSource{peat},
		Providers: []repositories.ResourcePoolProvider{testhelpers.MustStatic(pool, "Mha", capacity)},
		Claims:    []ClaimSpec{{SolutionID: "peat", Pool: pool}},
	})
	require.NoError(t, err)

	_, err = newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)

	adoption, err := peat.Adoption("")
	require.NoError(t, err)
	assertSeries(t, []float64{4, 0}, 2020, adoption)
}

func TestCoordinator_UndefinedCapacityAbortsWithoutCommit(t *testing.T) {
	horizon := testhelpers.Horizon(2020, 2021)
	pool := entities.PoolID{Category: "organic waste"}
	compost := memory.NewSolution("composting", map[string]entities.Series{
		"": entities.SeriesFromSlice(2020, []float64{1, 1}),
	})
	store := events.NewInMemoryEventStore()

	run, err := Initialize(context.Background(), Setup{
		Horizon:   horizon,
		Sources:   []repositories.AdoptionSource{compost},
		Providers: []repositories.ResourcePoolProvider{testhelpers.MustStatic(pool, "Mt", entities.SeriesFromSlice(2020, []float64{5}))},
		Claims:    []ClaimSpec{{SolutionID: "composting", Pool: pool}},
	})
	require.NoError(t, err)

	coordinator := newCoordinator(t, DefaultConfig(), WithEventStore(store))
	result, err := coordinator.Run(context.Background(), run)
	require.Error(t, err)
	assert.Nil(t, result)

	var undefined *entities.ResourceUndefinedError
	require.True(t, errors.As(err, &undefined))
	assert.Equal(t, entities.Year(2021), undefined.Year)
	assert.True(t, errors.Is(err, entities.ErrNotComposed))

	assert.Equal(t, 0, compost.Writes())
	assert.Equal(t, entities.StateInitial, coordinator.State())
	assert.Len(t, store.EventsOfType(events.IntegrationAbortedEvent), 1)
	assert.Empty(t, store.EventsOfType(events.AdoptionCommittedEvent))
}

func TestCoordinator_NegativeClaimIsClampedAndWarned(t *testing.T) {
	horizon := testhelpers.Horizon(2020, 2020)
	pool := entities.PoolID{Category: "organic waste"}
	shrinking := memory.NewSolution("landfill-methane", map[string]entities.Series{
		"": entities.SeriesFromSlice(2020, []float64{-5}),
	})

	run, err := Initialize(context.Background(), Setup{
		Horizon:   horizon,
		Sources:   []repositories.AdoptionSource{shrinking},
		Providers: []repositories.ResourcePoolProvider{testhelpers.MustStatic(pool, "Mt", entities.ConstantSeries(horizon, 10))},
		Claims:    []ClaimSpec{{SolutionID: "landfill-methane", Pool: pool}},
	})
	require.NoError(t, err)

	result, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)

	warnings := result.Report.WarningsOf(entities.NegativeClaimWarning)
	require.Len(t, warnings, result.Summary.Iterations)
	assert.Equal(t, -5.0, warnings[0].Value)

	rec, ok := result.Report.Lookup(1, "landfill-methane", pool, 2020)
	require.True(t, ok)
	assert.Equal(t, 0.0, rec.Requested)
	assert.Equal(t, 0.0, rec.Granted)
	assert.False(t, rec.Clipped)
}

func TestCoordinator_SplitGroupsAddUp(t *testing.T) {
	horizon := testhelpers.Horizon(2040, 2040)
	forest := entities.PoolID{Category: "Tropical-Humid/Forest", Region: "Latin America"}
	cropland := entities.PoolID{Category: "Tropical-Humid/Cropland", Region: "Latin America"}

	tests := []struct {
		name       string
		splitGroup string
		want       float64
	}{
		{"cells of one adoption share a group", "land", 90},
		{"independent claims take the tightest", "", 100 * 50.0 / 60.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			silvo := memory.NewSolution("silvopasture", map[string]entities.Series{
				"Latin America": entities.ConstantSeries(horizon, 100),
			})
			run, err := Initialize(context.Background(), Setup{
				Horizon: horizon,
				Sources: []repositories.AdoptionSource{silvo},
				Providers: []repositories.ResourcePoolProvider{
					testhelpers.MustStatic(forest, "Mha", entities.ConstantSeries(horizon, 50)),
					testhelpers.MustStatic(cropland, "Mha", entities.ConstantSeries(horizon, 50)),
				},
				Claims: []ClaimSpec{
					{SolutionID: "silvopasture", Region: "Latin America", Pool: forest, Share: 0.6, SplitGroup: tt.splitGroup},
					{SolutionID: "silvopasture", Region: "Latin America", Pool: cropland, Share: 0.4, SplitGroup: tt.splitGroup},
				},
			})
			require.NoError(t, err)

			_, err = newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
			require.NoError(t, err)

			adoption, err := silvo.Adoption("Latin America")
			require.NoError(t, err)
			assertSeries(t, []float64{tt.want}, 2040, adoption)
		})
	}
}

func TestCoordinator_PublishesEvents(t *testing.T) {
	run, _ := degradedForestRun(t)
	store := events.NewInMemoryEventStore()

	result, err := newCoordinator(t, DefaultConfig(), WithEventStore(store)).Run(context.Background(), run)
	require.NoError(t, err)

	assert.Len(t, store.EventsOfType(events.IntegrationStartedEvent), 1)
	assert.Len(t, store.EventsOfType(events.IntegrationConvergedEvent), 1)
	assert.Empty(t, store.EventsOfType(events.IntegrationMaxIterationsEvent))
	assert.Len(t, store.EventsOfType(events.AdoptionCommittedEvent), 2*result.Summary.Iterations)

	clipped := store.EventsOfType(events.ClaimClippedEvent)
	require.NotEmpty(t, clipped)
	// peatlands is the first claim clipped, in 2020
	first := clipped[0].Payload().(events.ClaimClipped)
	assert.Equal(t, testhelpers.Peatlands, first.SolutionID)
	assert.Equal(t, 3, first.YearsClipped)
	assert.InDelta(t, 50, first.TotalOvershoot, 1e-9)

	streamed, err := store.ReadRun(run.RunID(), 0)
	require.NoError(t, err)
	assert.Equal(t, len(store.EventsOfType(events.IntegrationStartedEvent))+
		len(store.EventsOfType(events.IntegrationConvergedEvent))+
		len(store.EventsOfType(events.AdoptionCommittedEvent))+
		len(clipped), len(streamed))
}

func TestCoordinator_ParallelResolutionMatchesSequential(t *testing.T) {
	horizon := testhelpers.Horizon(2020, 2024)
	build := func() (*RunContext, []*memory.Solution) {
		var sources []repositories.AdoptionSource
		var solutions []*memory.Solution
		var providers []repositories.ResourcePoolProvider
		var claims []ClaimSpec
		for i := 0; i < 6; i++ {
			pool := entities.PoolID{Category: "land", Region: fmt.Sprintf("r%d", i)}
			providers = append(providers, testhelpers.MustStatic(pool, "Mha", entities.ConstantSeries(horizon, 10)))
			for j := 0; j < 3; j++ {
				id := entities.SolutionID(fmt.Sprintf("s%d-%d", i, j))
				s := memory.NewSolution(id, map[string]entities.Series{
					pool.Region: entities.ConstantSeries(horizon, float64(3+j)),
				})
				solutions = append(solutions, s)
				sources = append(sources, s)
				claims = append(claims, ClaimSpec{SolutionID: id, Region: pool.Region, Pool: pool})
			}
		}
		run, err := Initialize(context.Background(), Setup{
			Horizon: horizon, Sources: sources, Providers: providers, Claims: claims,
			Orderings: []*entities.PriorityOrdering{
				testhelpers.MustOrdering(DefaultOrderingCategory, entities.ProRata),
			},
		})
		require.NoError(t, err)
		return run, solutions
	}

	sequentialRun, sequential := build()
	_, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), sequentialRun)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Workers = 4
	parallelRun, parallel := build()
	_, err = newCoordinator(t, config).Run(context.Background(), parallelRun)
	require.NoError(t, err)

	for i := range sequential {
		want, err := sequential[i].Adoption(sequential[i].Regions()[0])
		require.NoError(t, err)
		got, err := parallel[i].Adoption(parallel[i].Regions()[0])
		require.NoError(t, err)
		assert.True(t, want.Equal(got, 1e-12), "%s differs", sequential[i].ModuleIdentity())
	}
}

type failingSource struct {
	*memory.Solution
}

func (f failingSource) SetAdoption(string, entities.Series) error {
	return fmt.Errorf("read-only solution")
}

func TestCoordinator_CommitFailureRollsBack(t *testing.T) {
	horizon := testhelpers.Horizon(2020, 2020)
	pool := entities.PoolID{Category: "organic waste"}
	first := memory.NewSolution("a-compost", map[string]entities.Series{"": entities.ConstantSeries(horizon, 8)})
	second := failingSource{memory.NewSolution("b-digester", map[string]entities.Series{"": entities.ConstantSeries(horizon, 8)})}

	run, err := Initialize(context.Background(), Setup{
		Horizon:   horizon,
		Sources:   []repositories.AdoptionSource{first, second},
		Providers: []repositories.ResourcePoolProvider{testhelpers.MustStatic(pool, "Mt", entities.ConstantSeries(horizon, 10))},
		Claims: []ClaimSpec{
			{SolutionID: "a-compost", Pool: pool},
			{SolutionID: "b-digester", Pool: pool},
		},
	})
	require.NoError(t, err)

	_, err = newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only solution")

	adoption, err := first.Adoption("")
	require.NoError(t, err)
	assertSeries(t, []float64{8}, 2020, adoption)
	assert.Equal(t, 2, first.Writes(), "write then restore")
	assert.Equal(t, 0, run.Iteration())
}

func TestCoordinator_WarnsOnUnknownPrioritySolution(t *testing.T) {
	sourceRepo, poolRepo, _ := testhelpers.BuildDegradedForestTestData()
	priorityRepo := memory.NewPriorityRepository()
	require.NoError(t, priorityRepo.LoadOrderings([]*entities.PriorityOrdering{
		testhelpers.MustOrdering(testhelpers.DegradedForest, entities.StrictPriority,
			"mangroves", testhelpers.Peatlands, testhelpers.Afforestation),
	}))
	pool := testhelpers.Pool(testhelpers.DegradedForest)
	setup := buildSetup(t, testhelpers.Horizon(2020, 2022), sourceRepo, poolRepo, priorityRepo, []ClaimSpec{
		{SolutionID: testhelpers.Afforestation, Region: testhelpers.Region, Pool: pool},
		{SolutionID: testhelpers.Peatlands, Region: testhelpers.Region, Pool: pool},
	})
	run, err := Initialize(context.Background(), setup)
	require.NoError(t, err)

	result, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)

	warnings := result.Report.WarningsOf(entities.UnknownPrioritySolutionWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, entities.SolutionID("mangroves"), warnings[0].SolutionID)

	// peatlands now goes first
	assertSeries(t, []float64{30, 30, 60}, 2020, adoptionOf(t, sourceRepo, testhelpers.Peatlands))
	assertSeries(t, []float64{70, 70, 40}, 2020, adoptionOf(t, sourceRepo, testhelpers.Afforestation))
}

func TestCoordinator_WarnsOnUnrankedClaim(t *testing.T) {
	sourceRepo, poolRepo, _ := testhelpers.BuildDegradedForestTestData()
	priorityRepo := memory.NewPriorityRepository()
	require.NoError(t, priorityRepo.LoadOrderings([]*entities.PriorityOrdering{
		testhelpers.MustOrdering(testhelpers.DegradedForest, entities.StrictPriority, testhelpers.Peatlands),
	}))
	pool := testhelpers.Pool(testhelpers.DegradedForest)
	setup := buildSetup(t, testhelpers.Horizon(2020, 2022), sourceRepo, poolRepo, priorityRepo, []ClaimSpec{
		{SolutionID: testhelpers.Afforestation, Region: testhelpers.Region, Pool: pool},
		{SolutionID: testhelpers.Peatlands, Region: testhelpers.Region, Pool: pool},
	})
	run, err := Initialize(context.Background(), setup)
	require.NoError(t, err)

	result, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)

	warnings := result.Report.WarningsOf(entities.UnknownPrioritySolutionWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, testhelpers.Afforestation, warnings[0].SolutionID)
	assert.Equal(t, pool, warnings[0].Pool)
	assert.Contains(t, warnings[0].Message, "does not rank")
}

func TestCoordinator_IndependentCapRecordsOversubscription(t *testing.T) {
	sourceRepo, poolRepo, _ := testhelpers.BuildDegradedForestTestData()
	priorityRepo := memory.NewPriorityRepository()
	require.NoError(t, priorityRepo.LoadOrderings([]*entities.PriorityOrdering{
		testhelpers.MustOrdering(testhelpers.DegradedForest, entities.IndependentCap),
	}))
	pool := testhelpers.Pool(testhelpers.DegradedForest)
	setup := buildSetup(t, testhelpers.Horizon(2020, 2022), sourceRepo, poolRepo, priorityRepo, []ClaimSpec{
		{SolutionID: testhelpers.Afforestation, Region: testhelpers.Region, Pool: pool},
		{SolutionID: testhelpers.Peatlands, Region: testhelpers.Region, Pool: pool},
	})
	run, err := Initialize(context.Background(), setup)
	require.NoError(t, err)

	result, err := newCoordinator(t, DefaultConfig()).Run(context.Background(), run)
	require.NoError(t, err)

	assertSeries(t, []float64{80, 100, 50}, 2020, adoptionOf(t, sourceRepo, testhelpers.Afforestation))
	assertSeries(t, []float64{30, 30, 60}, 2020, adoptionOf(t, sourceRepo, testhelpers.Peatlands))

	// 2020: 110, 2021: 130, 2022: 110 against 100, once per pass
	warnings := result.Report.WarningsOf(entities.OversubscribedPoolWarning)
	assert.Len(t, warnings, 3*result.Summary.Iterations)
}

func TestCoordinator_HonoursCancellation(t *testing.T) {
	run, sourceRepo := degradedForestRun(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newCoordinator(t, DefaultConfig()).Run(ctx, run)
	require.ErrorIs(t, err, context.Canceled)

	src, err := sourceRepo.GetSource(testhelpers.Afforestation)
	require.NoError(t, err)
	assert.Equal(t, 0, src.(*memory.Solution).Writes())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, true},
		{"negative tolerance", func(c *Config) { c.ConvergenceTolerance = -1 }, true},
		{"negative capacity tolerance", func(c *Config) { c.CapacityTolerance = -1e-3 }, true},
		{"negative workers", func(c *Config) { c.Workers = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			_, err := NewCoordinator(config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
