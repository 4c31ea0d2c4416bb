// Package contention shares a finite resource pool between competing
// solution claims.
package contention

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/drawdown/pkg/domain/entities"
)

// Allocation is the outcome for one claim in one year
type Allocation struct {
	SolutionID entities.SolutionID
	Pool       entities.PoolID
	Year       entities.Year
	// RawRequested is the claim value before negative clamping
	RawRequested float64
	Requested    float64
	Granted      float64
	Clipped      bool
	Overshoot    float64
	// Negative is set when RawRequested was below zero and clamped
	Negative bool
}

// PoolClaims bundles a pool with the claims drawing on it
type PoolClaims struct {
	Pool     *entities.ResourcePool
	Ordering *entities.PriorityOrdering
	Claims   []entities.SolutionClaim
}

// PoolResolution is the outcome of resolving one pool over a set of years
type PoolResolution struct {
	Pool   entities.PoolID
	Policy entities.ResolutionPolicy
	// Claims are the adjusted claims in priority order
	Claims      []entities.SolutionClaim
	Allocations []Allocation
}

// Clipped returns the solutions clipped in at least one year
func (r *PoolResolution) Clipped() map[entities.SolutionID]bool {
	out := make(map[entities.SolutionID]bool)
	for _, a := range r.Allocations {
		if a.Clipped {
			out[a.SolutionID] = true
		}
	}
	return out
}

// Resolver computes adjusted claims so that a pool is never oversubscribed
type Resolver struct {
	tolerance float64
	workers   int
	logger    *zap.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithTolerance sets the absolute comparison tolerance in pool units
func WithTolerance(tol float64) Option {
	return func(r *Resolver) {
		if tol >= 0 {
			r.tolerance = tol
		}
	}
}

// WithWorkers sets how many pools may be resolved concurrently; values
// below 2 resolve sequentially
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		r.workers = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver with the default tolerance
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		tolerance: entities.CapacityTolerance,
		workers:   1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tolerance returns the comparison tolerance
func (r *Resolver) Tolerance() float64 {
	return r.tolerance
}

// ResolveYear shares one year of pool capacity between claims that are
// already in priority order. Capacity errors propagate unchanged.
func (r *Resolver) ResolveYear(
	pool *entities.ResourcePool,
	year entities.Year,
	ordered []entities.SolutionClaim,
	policy entities.ResolutionPolicy,
) ([]Allocation, error) {
	capacity, err := pool.Capacity(year)
	if err != nil {
		return nil, err
	}

	allocations := make([]Allocation, len(ordered))
	for i, claim := range ordered {
		raw, err := claim.Requested(year)
		if err != nil {
			return nil, err
		}
		want := raw
		if want < 0 {
			want = 0
		}
		allocations[i] = Allocation{
			SolutionID:   claim.SolutionID(),
			Pool:         pool.ID(),
			Year:         year,
			RawRequested: raw,
			Requested:    want,
			Negative:     raw < 0,
		}
	}

	switch {
	case capacity == 0:
		// an empty pool grants nothing, however small the claim
	case policy == entities.ProRata:
		r.shareProRata(capacity, allocations)
	case policy == entities.IndependentCap:
		r.capIndependently(capacity, allocations)
	default:
		if err := r.serveByPriority(pool.ID(), year, capacity, allocations); err != nil {
			return nil, err
		}
	}

	for i := range allocations {
		a := &allocations[i]
		if a.Requested-a.Granted > r.tolerance {
			a.Clipped = true
			a.Overshoot = a.Requested - a.Granted
		}
	}
	return allocations, nil
}

// serveByPriority grants each claim in order as much as remains
func (r *Resolver) serveByPriority(pool entities.PoolID, year entities.Year, capacity float64, allocations []Allocation) error {
	remaining := capacity
	for i := range allocations {
		a := &allocations[i]
		if a.Requested <= remaining+r.tolerance {
			a.Granted = a.Requested
		} else {
			a.Granted = math.Max(remaining, 0)
		}
		remaining -= a.Granted
	}
	if remaining < -r.tolerance {
		return &entities.ContentionInvariantError{Pool: pool, Year: year, Remaining: remaining}
	}
	return nil
}

// shareProRata scales every claim by capacity/total when oversubscribed
func (r *Resolver) shareProRata(capacity float64, allocations []Allocation) {
	var total float64
	for _, a := range allocations {
		total += a.Requested
	}
	if total <= capacity+r.tolerance {
		for i := range allocations {
			allocations[i].Granted = allocations[i].Requested
		}
		return
	}
	ratio := capacity / total
	for i := range allocations {
		allocations[i].Granted = allocations[i].Requested * ratio
	}
}

// capIndependently caps every claim against the whole pool on its own
func (r *Resolver) capIndependently(capacity float64, allocations []Allocation) {
	for i := range allocations {
		a := &allocations[i]
		if a.Requested <= capacity+r.tolerance {
			a.Granted = a.Requested
		} else {
			a.Granted = capacity
		}
	}
}

// ResolvePool resolves every year for one pool and returns adjusted claims
func (r *Resolver) ResolvePool(ctx context.Context, pc PoolClaims, years []entities.Year) (*PoolResolution, error) {
	if pc.Pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	policy := pc.Ordering.PolicyOf()
	ordered := pc.Ordering.Ordered(pc.Claims)

	adjusted := make([]entities.SolutionClaim, len(ordered))
	copy(adjusted, ordered)

	resolution := &PoolResolution{
		Pool:        pc.Pool.ID(),
		Policy:      policy,
		Allocations: make([]Allocation, 0, len(ordered)*len(years)),
	}

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		allocations, err := r.ResolveYear(pc.Pool, year, ordered, policy)
		if err != nil {
			return nil, err
		}
		for i, a := range allocations {
			adjusted[i] = adjusted[i].WithGrant(year, a.Granted)
			if a.Clipped {
				r.logger.Debug("claim clipped",
					zap.String("solution", string(a.SolutionID)),
					zap.String("pool", a.Pool.String()),
					zap.Int("year", int(a.Year)),
					zap.Float64("requested", a.Requested),
					zap.Float64("granted", a.Granted),
				)
			}
		}
		resolution.Allocations = append(resolution.Allocations, allocations...)
	}

	for i := range adjusted {
		adjusted[i] = adjusted[i].MarkResolved()
	}
	resolution.Claims = adjusted
	return resolution, nil
}

// ResolveAll resolves independent pools, concurrently when more than one
// worker is configured. Results keep the input order. No shared state is
// written; callers commit the results from a single goroutine.
func (r *Resolver) ResolveAll(ctx context.Context, pools []PoolClaims, years []entities.Year) ([]*PoolResolution, error) {
	results := make([]*PoolResolution, len(pools))

	if r.workers < 2 || len(pools) < 2 {
		for i, pc := range pools {
			res, err := r.ResolvePool(ctx, pc, years)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, pc := range pools {
		i, pc := i, pc
		g.Go(func() error {
			res, err := r.ResolvePool(gctx, pc, years)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
