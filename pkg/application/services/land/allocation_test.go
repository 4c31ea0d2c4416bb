package land

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/drawdown/pkg/application/services/integration"
	"github.com/vsinha/drawdown/pkg/application/services/regional"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/infrastructure/repositories/memory"
)

var (
	forest   = Cell{TMR: TropicalHumid, AEZ: "AEZ6: Forest, prime"}
	degraded = Cell{TMR: TropicalHumid, AEZ: "AEZ7: Forest, good"}
)

func TestParseCell(t *testing.T) {
	cell, err := ParseCell(forest.Category())
	require.NoError(t, err)
	assert.Equal(t, forest, cell)

	_, err = ParseCell("Tropical-Humid")
	assert.Error(t, err)
}

func TestBuild_Validation(t *testing.T) {
	h, err := entities.NewHorizon(2020, 2020)
	require.NoError(t, err)
	table := Table{Region: regional.LatinAmerica, Area: map[Cell]entities.Series{forest: entities.ConstantSeries(h, 10)}}

	tests := []struct {
		name      string
		table     Table
		solutions []Solution
		want      string
	}{
		{"empty table", Table{Region: "x"}, nil, "no cells"},
		{"over-allocated", table, []Solution{{SolutionID: "a", Shares: map[Cell]float64{forest: 0.7, degraded: 0.5}}}, "allocates"},
		{"negative share", table, []Solution{{SolutionID: "a", Shares: map[Cell]float64{forest: -0.1}}}, "invalid share"},
		{"unknown cell", table, []Solution{{SolutionID: "a", Shares: map[Cell]float64{degraded: 1}}}, "missing from"},
		{"listed twice", table, []Solution{{SolutionID: "a"}, {SolutionID: "a"}}, "listed twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.table, tt.solutions, entities.StrictPriority)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLandIntegration_CellsSplitAdoption(t *testing.T) {
	h, err := entities.NewHorizon(2020, 2021)
	require.NoError(t, err)
	region := regional.LatinAmerica

	table := Table{
		Region: region,
		Area: map[Cell]entities.Series{
			forest:   entities.SeriesFromSlice(2020, []float64{30, 30}),
			degraded: entities.SeriesFromSlice(2020, []float64{100, 40}),
		},
	}
	solutions := []Solution{
		{SolutionID: "tropical-forests", Shares: map[Cell]float64{forest: 1}},
		{SolutionID: "silvopasture", Shares: map[Cell]float64{forest: 0.5, degraded: 0.5}},
	}

	topo, err := Build(table, solutions, entities.StrictPriority)
	require.NoError(t, err)
	require.Len(t, topo.Providers, 2)
	require.Len(t, topo.Claims, 3)
	require.Len(t, topo.Orderings, 2)

	tropical := memory.NewSolution("tropical-forests", map[string]entities.Series{region: entities.ConstantSeries(h, 20)})
	silvo := memory.NewSolution("silvopasture", map[string]entities.Series{region: entities.ConstantSeries(h, 60)})

	run, err := integration.Initialize(context.Background(), integration.Setup{
		Horizon:   h,
		Sources:   []repositories.AdoptionSource{tropical, silvo},
		Providers: topo.Providers,
		Claims:    topo.Claims,
		Orderings: topo.Orderings,
	})
	require.NoError(t, err)

	coordinator, err := integration.NewCoordinator(integration.DefaultConfig())
	require.NoError(t, err)
	result, err := coordinator.Run(context.Background(), run)
	require.NoError(t, err)
	assert.True(t, result.Converged())

	// forest cell: tropical forests take 20 of 30, silvopasture wants 30 and
	// gets 10; degraded cell grants 30 in 2020 and 30 in 2021
	got, err := silvo.Adoption(region)
	require.NoError(t, err)
	v2020, _ := got.Value(2020)
	v2021, _ := got.Value(2021)
	assert.InDelta(t, 40, v2020, 1e-9)
	assert.InDelta(t, 40, v2021, 1e-9)

	got, err = tropical.Adoption(region)
	require.NoError(t, err)
	assert.True(t, got.Equal(entities.ConstantSeries(h, 20), 1e-9))
}

func TestLandIntegration_TwoRegions(t *testing.T) {
	h, err := entities.NewHorizon(2020, 2020)
	require.NoError(t, err)

	tables := []Table{
		{Region: regional.LatinAmerica, Area: map[Cell]entities.Series{forest: entities.ConstantSeries(h, 30)}},
		{Region: regional.Asia, Area: map[Cell]entities.Series{forest: entities.ConstantSeries(h, 10)}},
	}
	solutions := []Solution{
		{SolutionID: "tropical-forests", Shares: map[Cell]float64{forest: 1}},
		{SolutionID: "silvopasture", Shares: map[Cell]float64{forest: 1}},
	}

	topo, err := BuildRegions(tables, solutions, entities.StrictPriority)
	require.NoError(t, err)
	assert.Len(t, topo.Providers, 2)
	assert.Len(t, topo.Claims, 4)
	require.Len(t, topo.Orderings, 1, "one ordering per cell across regions")
	assert.Equal(t, forest.Category(), topo.Orderings[0].Category)

	tropical := memory.NewSolution("tropical-forests", map[string]entities.Series{
		regional.LatinAmerica: entities.ConstantSeries(h, 20),
		regional.Asia:         entities.ConstantSeries(h, 20),
	})
	silvo := memory.NewSolution("silvopasture", map[string]entities.Series{
		regional.LatinAmerica: entities.ConstantSeries(h, 20),
		regional.Asia:         entities.ConstantSeries(h, 5),
	})

	run, err := integration.Initialize(context.Background(), integration.Setup{
		Horizon:   h,
		Sources:   []repositories.AdoptionSource{tropical, silvo},
		Providers: topo.Providers,
		Claims:    topo.Claims,
		Orderings: topo.Orderings,
	})
	require.NoError(t, err)

	coordinator, err := integration.NewCoordinator(integration.DefaultConfig())
	require.NoError(t, err)
	result, err := coordinator.Run(context.Background(), run)
	require.NoError(t, err)
	assert.True(t, result.Converged())

	value := func(src *memory.Solution, region string) float64 {
		s, err := src.Adoption(region)
		require.NoError(t, err)
		v, ok := s.Value(2020)
		require.True(t, ok)
		return v
	}
	assert.InDelta(t, 20, value(tropical, regional.LatinAmerica), 1e-9)
	assert.InDelta(t, 10, value(silvo, regional.LatinAmerica), 1e-9)
	assert.InDelta(t, 10, value(tropical, regional.Asia), 1e-9)
	assert.InDelta(t, 0, value(silvo, regional.Asia), 1e-9)
}

func TestBuildRegions_Validation(t *testing.T) {
	h, err := entities.NewHorizon(2020, 2020)
	require.NoError(t, err)
	table := Table{Region: regional.Asia, Area: map[Cell]entities.Series{forest: entities.ConstantSeries(h, 10)}}

	_, err = BuildRegions(nil, nil, entities.StrictPriority)
	assert.ErrorContains(t, err, "no land tables")

	_, err = BuildRegions([]Table{table, table}, nil, entities.StrictPriority)
	assert.ErrorContains(t, err, "given twice")
}
