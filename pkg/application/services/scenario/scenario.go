// Package scenario assembles an integration run from tabular inputs.
package scenario

import (
	"fmt"
	"sort"

	"github.com/vsinha/drawdown/pkg/application/services/integration"
	"github.com/vsinha/drawdown/pkg/application/services/pools"
	"github.com/vsinha/drawdown/pkg/application/services/waste"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
	"github.com/vsinha/drawdown/pkg/infrastructure/repositories/memory"
)

// Scenario holds the repositories and claim specs of an assembled run
type Scenario struct {
	Horizon    entities.Horizon
	Sources    *memory.SourceRepository
	Pools      *memory.PoolRepository
	Priorities *memory.PriorityRepository
	Claims     []integration.ClaimSpec
}

// Builder assembles scenarios
type Builder struct {
	horizon entities.Horizon
	energy  units.Context
}

// NewBuilder creates a builder for a horizon; energy is used when adoption
// units differ from pool units across dimensions
func NewBuilder(horizon entities.Horizon, energy units.Context) *Builder {
	return &Builder{horizon: horizon, energy: energy}
}

type solutionRegion struct {
	solution entities.SolutionID
	region   string
}

// Build creates static pools, in-memory solutions and claim specs from data.
// Adoption and capacity outside the horizon are dropped.
func (b *Builder) Build(data repositories.ScenarioData, orderings []*entities.PriorityOrdering) (*Scenario, error) {
	adoption, adoptionUnits, err := b.adoptionSeries(data.Adoption)
	if err != nil {
		return nil, err
	}
	capacity, poolUnits, err := b.poolSeries(data.Pools)
	if err != nil {
		return nil, err
	}

	sc, err := b.newScenario(adoption)
	if err != nil {
		return nil, err
	}

	var providers []repositories.ResourcePoolProvider
	for _, id := range sortedPools(capacity) {
		p, err := pools.NewStatic(id, string(poolUnits[id]), capacity[id])
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if err := sc.Pools.LoadProviders(providers); err != nil {
		return nil, err
	}

	for i, rec := range data.Claims {
		key := solutionRegion{solution: rec.SolutionID, region: rec.Region}
		from, ok := adoptionUnits[key]
		if !ok {
			return nil, fmt.Errorf("claim %d: no adoption for %s in %q", i+1, rec.SolutionID, rec.Region)
		}
		to, ok := poolUnits[rec.Pool]
		if !ok {
			return nil, fmt.Errorf("claim %d: unknown pool %s", i+1, rec.Pool)
		}
		spec := integration.ClaimSpec{
			SolutionID: rec.SolutionID,
			Region:     rec.Region,
			Pool:       rec.Pool,
			Share:      rec.Share,
			SplitGroup: rec.SplitGroup,
		}
		if from != to {
			converter, err := units.NewConverter(from, to, b.energy)
			if err != nil {
				return nil, fmt.Errorf("claim %d (%s -> %s): %w", i+1, rec.SolutionID, rec.Pool, err)
			}
			spec.Converter = converter
		}
		sc.Claims = append(sc.Claims, spec)
	}

	if err := sc.Priorities.LoadOrderings(orderings); err != nil {
		return nil, err
	}
	return sc, nil
}

// newScenario registers one in-memory solution per adoption series
func (b *Builder) newScenario(adoption map[solutionRegion]entities.Series) (*Scenario, error) {
	sc := &Scenario{
		Horizon:    b.horizon,
		Sources:    memory.NewSourceRepository(len(adoption)),
		Pools:      memory.NewPoolRepository(),
		Priorities: memory.NewPriorityRepository(),
	}

	byID := make(map[entities.SolutionID]map[string]entities.Series)
	for key, s := range adoption {
		if byID[key.solution] == nil {
			byID[key.solution] = make(map[string]entities.Series)
		}
		byID[key.solution][key.region] = s
	}
	ids := make([]entities.SolutionID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := sc.Sources.Register(memory.NewSolution(id, byID[id])); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func sortedPools(capacity map[entities.PoolID]entities.Series) []entities.PoolID {
	ids := make([]entities.PoolID, 0, len(capacity))
	for id := range capacity {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// WasteSpec describes a waste scenario. Total waste per region comes from the
// pool rows of TotalCategory; claimant lists are in priority order.
type WasteSpec struct {
	TotalCategory      string
	OrganicShare       float64
	RecyclableShare    float64
	OrganicReducers    []entities.SolutionID
	RecyclableReducers []entities.SolutionID
	Organic            []entities.SolutionID
	Recyclable         []entities.SolutionID
	Remainder          []entities.SolutionID
}

// BuildWaste creates the waste topology of every region with total waste
// rows. A solution claims or reduces a pool only in regions where it has
// adoption; claimant units come from the adoption rows. Configured orderings
// replace the claimant order for their categories.
func (b *Builder) BuildWaste(data repositories.ScenarioData, spec WasteSpec, orderings []*entities.PriorityOrdering) (*Scenario, error) {
	if len(data.Claims) > 0 {
		return nil, fmt.Errorf("waste scenario derives its claims, got %d claim rows", len(data.Claims))
	}
	adoption, adoptionUnits, err := b.adoptionSeries(data.Adoption)
	if err != nil {
		return nil, err
	}
	totals, totalUnits, err := b.poolSeries(data.Pools)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("waste scenario has no %s rows", spec.TotalCategory)
	}

	sc, err := b.newScenario(adoption)
	if err != nil {
		return nil, err
	}

	present := func(ids []entities.SolutionID, region string) []entities.SolutionID {
		var out []entities.SolutionID
		for _, id := range ids {
			if _, ok := adoption[solutionRegion{solution: id, region: region}]; ok {
				out = append(out, id)
			}
		}
		return out
	}
	claimants := func(ids []entities.SolutionID, region string) []waste.Claimant {
		var out []waste.Claimant
		for _, id := range present(ids, region) {
			out = append(out, waste.Claimant{SolutionID: id, Unit: adoptionUnits[solutionRegion{solution: id, region: region}]})
		}
		return out
	}

	var configs []waste.Config
	for _, id := range sortedPools(totals) {
		if id.Category != spec.TotalCategory {
			return nil, fmt.Errorf("waste scenario takes only %s pool rows, got %s", spec.TotalCategory, id)
		}
		total := totals[id]
		if u := totalUnits[id]; u != waste.PoolUnit {
			factor, err := units.Convert(1, u, waste.PoolUnit, b.energy)
			if err != nil {
				return nil, fmt.Errorf("total waste of %q: %w", id.Region, err)
			}
			total = total.Scale(factor)
		}
		configs = append(configs, waste.Config{
			Region:             id.Region,
			Total:              total,
			OrganicShare:       spec.OrganicShare,
			RecyclableShare:    spec.RecyclableShare,
			OrganicReducers:    present(spec.OrganicReducers, id.Region),
			RecyclableReducers: present(spec.RecyclableReducers, id.Region),
			Organic:            claimants(spec.Organic, id.Region),
			Recyclable:         claimants(spec.Recyclable, id.Region),
			Remainder:          claimants(spec.Remainder, id.Region),
			Energy:             b.energy,
		})
	}

	topo, err := waste.BuildRegions(configs)
	if err != nil {
		return nil, err
	}
	if err := sc.Pools.LoadProviders(topo.Providers); err != nil {
		return nil, err
	}
	sc.Claims = topo.Claims

	configured := make(map[string]bool, len(orderings))
	for _, o := range orderings {
		if o != nil {
			configured[o.Category] = true
		}
	}
	for _, o := range topo.Orderings {
		if !configured[o.Category] {
			orderings = append(orderings, o)
		}
	}
	if err := sc.Priorities.LoadOrderings(orderings); err != nil {
		return nil, err
	}
	return sc, nil
}

func (b *Builder) adoptionSeries(records []repositories.AdoptionRecord) (map[solutionRegion]entities.Series, map[solutionRegion]units.Unit, error) {
	series := make(map[solutionRegion]entities.Series)
	unitOf := make(map[solutionRegion]units.Unit)
	for i, rec := range records {
		if rec.SolutionID == "" {
			return nil, nil, fmt.Errorf("adoption record %d has no solution", i+1)
		}
		key := solutionRegion{solution: rec.SolutionID, region: rec.Region}
		if u, ok := unitOf[key]; ok && u != rec.Unit {
			return nil, nil, fmt.Errorf("adoption of %s in %q mixes units %s and %s", rec.SolutionID, rec.Region, u, rec.Unit)
		}
		unitOf[key] = rec.Unit
		if !b.horizon.Contains(rec.Year) {
			continue
		}
		s := series[key]
		if s.IsDefined(rec.Year) {
			return nil, nil, fmt.Errorf("adoption of %s in %q repeats %d", rec.SolutionID, rec.Region, rec.Year)
		}
		if rec.NotApplicable {
			series[key] = s.WithNotApplicable(rec.Year)
		} else {
			series[key] = s.With(rec.Year, rec.Value)
		}
	}
	return series, unitOf, nil
}

func (b *Builder) poolSeries(records []repositories.PoolRecord) (map[entities.PoolID]entities.Series, map[entities.PoolID]units.Unit, error) {
	series := make(map[entities.PoolID]entities.Series)
	unitOf := make(map[entities.PoolID]units.Unit)
	for i, rec := range records {
		if rec.Category == "" {
			return nil, nil, fmt.Errorf("pool record %d has no category", i+1)
		}
		id := entities.PoolID{Category: rec.Category, Region: rec.Region}
		if u, ok := unitOf[id]; ok && u != rec.Unit {
			return nil, nil, fmt.Errorf("pool %s mixes units %s and %s", id, u, rec.Unit)
		}
		unitOf[id] = rec.Unit
		if !b.horizon.Contains(rec.Year) {
			continue
		}
		s := series[id]
		if s.IsDefined(rec.Year) {
			return nil, nil, fmt.Errorf("pool %s repeats %d", id, rec.Year)
		}
		if rec.NotApplicable {
			series[id] = s.WithNotApplicable(rec.Year)
		} else {
			series[id] = s.With(rec.Year, rec.Capacity)
		}
	}
	return series, unitOf, nil
}

// Setup returns the integration setup of the scenario
func (s *Scenario) Setup(runID string) (integration.Setup, error) {
	sources, err := s.Sources.GetAllSources()
	if err != nil {
		return integration.Setup{}, err
	}
	providers, err := s.Pools.GetAllProviders()
	if err != nil {
		return integration.Setup{}, err
	}
	orderings, err := s.Priorities.GetAllOrderings()
	if err != nil {
		return integration.Setup{}, err
	}
	return integration.Setup{
		RunID:     runID,
		Horizon:   s.Horizon,
		Sources:   sources,
		Providers: providers,
		Claims:    s.Claims,
		Orderings: orderings,
	}, nil
}
