package entities

import (
	"context"
	"errors"
	"fmt"
)

// CapacityTolerance is the absolute tolerance, in the pool's native unit,
// used when comparing claims against capacity
const CapacityTolerance = 1e-9

// PoolID identifies a resource pool by category and optional region
type PoolID struct {
	Category string `json:"category"`
	Region   string `json:"region,omitempty"`
}

// String returns "category" or "category@region"
func (id PoolID) String() string {
	if id.Region == "" {
		return id.Category
	}
	return fmt.Sprintf("%s@%s", id.Category, id.Region)
}

// UpstreamState is the read-only view of integration state that pool
// composition reads from
type UpstreamState interface {
	// Adoption returns a solution's current (committed) adoption for a region
	Adoption(id SolutionID, region string) (Series, error)
	// Granted returns the amounts granted to a claim in the last committed
	// pass; zero-valued before the first commit
	Granted(id SolutionID, pool PoolID) Series
	// Iteration returns the number of passes committed so far
	Iteration() int
}

// PoolComposer derives a capacity series from upstream state
type PoolComposer interface {
	Compose(ctx context.Context, state UpstreamState) (Series, error)
}

// ResourcePool is a finite, typed capacity indexed by year.
// Pools are immutable: Recompute returns a replacement.
type ResourcePool struct {
	id       PoolID
	unit     string
	horizon  Horizon
	capacity Series
}

// NewResourcePool creates a validated ResourcePool
func NewResourcePool(id PoolID, unit string, horizon Horizon, capacity Series) (*ResourcePool, error) {
	if id.Category == "" {
		return nil, fmt.Errorf("pool category cannot be empty")
	}
	if unit == "" {
		return nil, fmt.Errorf("pool unit cannot be empty")
	}
	if horizon.Len() == 0 {
		return nil, fmt.Errorf("pool horizon cannot be empty")
	}

	checked, err := normalizeCapacity(id, capacity.Restrict(horizon))
	if err != nil {
		return nil, err
	}

	return &ResourcePool{
		id:       id,
		unit:     unit,
		horizon:  horizon,
		capacity: checked,
	}, nil
}

// normalizeCapacity clamps negatives within tolerance to zero and rejects
// larger negatives
func normalizeCapacity(id PoolID, capacity Series) (Series, error) {
	out := capacity
	for year, v := range capacity.values {
		if v >= 0 {
			continue
		}
		if v < -CapacityTolerance {
			return Series{}, fmt.Errorf("pool %s has negative capacity %g in %d", id, v, year)
		}
		out = out.With(year, 0)
	}
	return out, nil
}

// ID returns the pool identity
func (p *ResourcePool) ID() PoolID {
	return p.id
}

// Unit returns the pool's native unit
func (p *ResourcePool) Unit() string {
	return p.unit
}

// Horizon returns the pool's model horizon
func (p *ResourcePool) Horizon() Horizon {
	return p.horizon
}

// CapacitySeries returns a copy of the capacity series
func (p *ResourcePool) CapacitySeries() Series {
	return p.capacity.clone()
}

// Capacity returns the capacity for a year.
// Years marked not applicable yield 0. Years never composed yield a
// *ResourceUndefinedError.
func (p *ResourcePool) Capacity(year Year) (float64, error) {
	if p.capacity.IsNotApplicable(year) {
		return 0, nil
	}
	v, ok := p.capacity.Value(year)
	if !ok {
		return 0, &ResourceUndefinedError{Input: p.id.String(), Year: year}
	}
	return v, nil
}

// Recompute asks composer for a fresh capacity series and returns a new pool.
// The receiver is left untouched.
func (p *ResourcePool) Recompute(ctx context.Context, composer PoolComposer, state UpstreamState) (*ResourcePool, error) {
	capacity, err := composer.Compose(ctx, state)
	if err != nil {
		var undefined *ResourceUndefinedError
		if errors.As(err, &undefined) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to compose pool %s: %w", p.id, err)
	}
	return NewResourcePool(p.id, p.unit, p.horizon, capacity)
}
