// Package waste builds the municipal solid waste integration: organic,
// recyclable and remainder pools per region and the solutions drawing on
// them.
package waste

import (
	"context"
	"fmt"

	"github.com/vsinha/drawdown/pkg/application/services/integration"
	"github.com/vsinha/drawdown/pkg/application/services/pools"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
)

// Pool categories of the waste integration
const (
	OrganicCategory    = "organic waste"
	RecyclableCategory = "recyclable waste"
	RemainderCategory  = "remainder waste"
)

// PoolUnit is the native unit of every waste pool
const PoolUnit = units.Megatonne

// Claimant is a solution drawing on a waste pool. Unit is the unit of its
// adoption; anything other than Mt is converted, e.g. TWh of waste-to-energy
// electricity into Mt of feedstock.
type Claimant struct {
	SolutionID entities.SolutionID
	Unit       units.Unit
}

func (c Claimant) unit() units.Unit {
	if c.Unit == "" {
		return PoolUnit
	}
	return c.Unit
}

// Config describes the waste stream of one region
type Config struct {
	Region string
	// Total is the municipal solid waste generated, in Mt
	Total entities.Series
	// OrganicShare and RecyclableShare split Total; the rest is remainder
	OrganicShare    float64
	RecyclableShare float64

	// OrganicReducers shrink the organic pool by their adoption in Mt,
	// e.g. reduced food waste
	OrganicReducers []entities.SolutionID
	// RecyclableReducers shrink the recyclable pool by their adoption in Mt
	RecyclableReducers []entities.SolutionID

	// Claimants per pool in priority order
	Organic    []Claimant
	Recyclable []Claimant
	Remainder  []Claimant

	// Energy converts energy adoption into feedstock mass
	Energy units.Context
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Total.Len() == 0 {
		return fmt.Errorf("waste total for %q cannot be empty", c.Region)
	}
	if c.OrganicShare < 0 || c.RecyclableShare < 0 {
		return fmt.Errorf("waste shares for %q must be non-negative", c.Region)
	}
	if c.OrganicShare+c.RecyclableShare > 1 {
		return fmt.Errorf("organic and recyclable shares for %q exceed 1: %g", c.Region, c.OrganicShare+c.RecyclableShare)
	}
	seen := make(map[entities.SolutionID]string)
	for name, group := range map[string][]Claimant{
		OrganicCategory:    c.Organic,
		RecyclableCategory: c.Recyclable,
		RemainderCategory:  c.Remainder,
	} {
		for _, cl := range group {
			if cl.SolutionID == "" {
				return fmt.Errorf("%s claimant in %q has no solution id", name, c.Region)
			}
			if other, dup := seen[cl.SolutionID]; dup {
				return fmt.Errorf("solution %s claims both %s and %s in %q", cl.SolutionID, other, name, c.Region)
			}
			seen[cl.SolutionID] = name
		}
	}
	return nil
}

// Topology is the set of providers, claims and orderings of one region, or of
// several when Region is empty
type Topology struct {
	Region    string
	Providers []repositories.ResourcePoolProvider
	Claims    []integration.ClaimSpec
	Orderings []*entities.PriorityOrdering
}

// PoolID returns the id of a waste pool in the topology's region
func (t *Topology) PoolID(category string) entities.PoolID {
	return entities.PoolID{Category: category, Region: t.Region}
}

// BuildRegions builds the waste topology of every region and merges the
// per-category orderings so the result feeds a single run
func BuildRegions(cfgs []Config) (*Topology, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no waste regions to build")
	}
	combined := &Topology{}
	var orderings []*entities.PriorityOrdering
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.Region] {
			return nil, fmt.Errorf("waste region %q given twice", cfg.Region)
		}
		seen[cfg.Region] = true

		topo, err := Build(cfg)
		if err != nil {
			return nil, fmt.Errorf("waste region %q: %w", cfg.Region, err)
		}
		combined.Providers = append(combined.Providers, topo.Providers...)
		combined.Claims = append(combined.Claims, topo.Claims...)
		orderings = append(orderings, topo.Orderings...)
	}

	merged, err := entities.MergeOrderings(orderings)
	if err != nil {
		return nil, err
	}
	combined.Orderings = merged
	return combined, nil
}

// Build creates the waste topology of one region. The remainder pool holds
// what composting-type and recycling-type claims were not granted, so it
// grows or shrinks as those claims settle.
func Build(cfg Config) (*Topology, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topo := &Topology{Region: cfg.Region}
	organicID := topo.PoolID(OrganicCategory)
	recyclableID := topo.PoolID(RecyclableCategory)
	remainderID := topo.PoolID(RemainderCategory)
	unit := string(PoolUnit)

	organic, err := pools.NewFunc(organicID, unit, fraction(cfg.Region, cfg.Total, cfg.OrganicShare, cfg.OrganicReducers))
	if err != nil {
		return nil, err
	}
	recyclable, err := pools.NewFunc(recyclableID, unit, fraction(cfg.Region, cfg.Total, cfg.RecyclableShare, cfg.RecyclableReducers))
	if err != nil {
		return nil, err
	}

	var deductions []pools.Deduction
	for _, cl := range cfg.Organic {
		deductions = append(deductions, pools.Deduction{SolutionID: cl.SolutionID, Pool: organicID})
	}
	for _, cl := range cfg.Recyclable {
		deductions = append(deductions, pools.Deduction{SolutionID: cl.SolutionID, Pool: recyclableID})
	}
	total, err := pools.NewStatic(remainderID, unit, cfg.Total)
	if err != nil {
		return nil, err
	}
	remainder, err := pools.NewResidual(remainderID, unit, total, deductions...)
	if err != nil {
		return nil, err
	}
	topo.Providers = []repositories.ResourcePoolProvider{organic, recyclable, remainder}

	for _, group := range []struct {
		pool      entities.PoolID
		claimants []Claimant
	}{
		{organicID, cfg.Organic},
		{recyclableID, cfg.Recyclable},
		{remainderID, cfg.Remainder},
	} {
		order := make([]entities.SolutionID, 0, len(group.claimants))
		for _, cl := range group.claimants {
			spec := integration.ClaimSpec{SolutionID: cl.SolutionID, Region: cfg.Region, Pool: group.pool}
			if cl.unit() != PoolUnit {
				converter, err := units.NewConverter(cl.unit(), PoolUnit, cfg.Energy)
				if err != nil {
					return nil, fmt.Errorf("claimant %s: %w", cl.SolutionID, err)
				}
				spec.Converter = converter
			}
			topo.Claims = append(topo.Claims, spec)
			order = append(order, cl.SolutionID)
		}
		ordering, err := entities.NewPriorityOrdering(group.pool.Category, order, entities.StrictPriority)
		if err != nil {
			return nil, err
		}
		topo.Orderings = append(topo.Orderings, ordering)
	}

	return topo, nil
}

// fraction composes share * total minus the adoption of reducers, floored at
// zero
func fraction(region string, total entities.Series, share float64, reducers []entities.SolutionID) pools.ComposeFunc {
	return func(ctx context.Context, state entities.UpstreamState) (entities.Series, error) {
		if err := ctx.Err(); err != nil {
			return entities.Series{}, err
		}
		capacity := total.Scale(share)
		for _, id := range reducers {
			reduced, err := state.Adoption(id, region)
			if err != nil {
				return entities.Series{}, fmt.Errorf("reducer %s: %w", id, err)
			}
			capacity = capacity.Sub(reduced)
		}
		return capacity.Map(func(_ entities.Year, v float64) float64 {
			if v < 0 {
				return 0
			}
			return v
		}), nil
	}
}
