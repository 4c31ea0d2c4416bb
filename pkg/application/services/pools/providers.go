// Package pools provides ResourcePoolProvider implementations: fixed
// capacities, capacities computed by a function, and capacities that shrink
// by what other claims were granted.
package pools

import (
	"context"
	"fmt"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
)

// Static is a pool whose capacity does not depend on upstream state
type Static struct {
	id       entities.PoolID
	unit     string
	capacity entities.Series
}

// NewStatic creates a provider that always composes capacity
func NewStatic(id entities.PoolID, unit string, capacity entities.Series) (*Static, error) {
	if id.Category == "" {
		return nil, fmt.Errorf("pool category cannot be empty")
	}
	if unit == "" {
		return nil, fmt.Errorf("pool unit cannot be empty")
	}
	return &Static{id: id, unit: unit, capacity: capacity}, nil
}

var _ repositories.ResourcePoolProvider = (*Static)(nil)

func (p *Static) PoolID() entities.PoolID { return p.id }
func (p *Static) Unit() string            { return p.unit }

// Compose returns the fixed capacity
func (p *Static) Compose(ctx context.Context, _ entities.UpstreamState) (entities.Series, error) {
	if err := ctx.Err(); err != nil {
		return entities.Series{}, err
	}
	return p.capacity, nil
}

// ComposeFunc computes a capacity from upstream state
type ComposeFunc func(ctx context.Context, state entities.UpstreamState) (entities.Series, error)

// Func is a pool whose capacity is computed by a function
type Func struct {
	id   entities.PoolID
	unit string
	fn   ComposeFunc
}

// NewFunc creates a provider backed by fn
func NewFunc(id entities.PoolID, unit string, fn ComposeFunc) (*Func, error) {
	if id.Category == "" {
		return nil, fmt.Errorf("pool category cannot be empty")
	}
	if unit == "" {
		return nil, fmt.Errorf("pool unit cannot be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("compose function for %s cannot be nil", id)
	}
	return &Func{id: id, unit: unit, fn: fn}, nil
}

var _ repositories.ResourcePoolProvider = (*Func)(nil)

func (p *Func) PoolID() entities.PoolID { return p.id }
func (p *Func) Unit() string            { return p.unit }

// Compose calls the function
func (p *Func) Compose(ctx context.Context, state entities.UpstreamState) (entities.Series, error) {
	return p.fn(ctx, state)
}

// Deduction names a claim whose committed grants are taken out of a pool,
// scaled by Scale (zero means 1)
type Deduction struct {
	SolutionID entities.SolutionID
	Pool       entities.PoolID
	Scale      float64
}

func (d Deduction) scale() float64 {
	if d.Scale == 0 {
		return 1
	}
	return d.Scale
}

// Residual is a pool holding what is left of a base capacity after the
// grants of other claims. Negative remainders clamp to zero.
type Residual struct {
	id         entities.PoolID
	unit       string
	base       entities.PoolComposer
	deductions []Deduction
}

// NewResidual creates a provider composing base minus the deductions
func NewResidual(id entities.PoolID, unit string, base entities.PoolComposer, deductions ...Deduction) (*Residual, error) {
	if id.Category == "" {
		return nil, fmt.Errorf("pool category cannot be empty")
	}
	if unit == "" {
		return nil, fmt.Errorf("pool unit cannot be empty")
	}
	if base == nil {
		return nil, fmt.Errorf("residual pool %s needs a base capacity", id)
	}
	for _, d := range deductions {
		if d.SolutionID == "" || d.Pool.Category == "" {
			return nil, fmt.Errorf("residual pool %s has an incomplete deduction", id)
		}
	}
	return &Residual{id: id, unit: unit, base: base, deductions: deductions}, nil
}

var _ repositories.ResourcePoolProvider = (*Residual)(nil)

func (p *Residual) PoolID() entities.PoolID { return p.id }
func (p *Residual) Unit() string            { return p.unit }

// Deductions returns the claims taken out of the base capacity
func (p *Residual) Deductions() []Deduction {
	out := make([]Deduction, len(p.deductions))
	copy(out, p.deductions)
	return out
}

// DependsOn returns the pools whose grants the capacity reads, without repeats
func (p *Residual) DependsOn() []entities.PoolID {
	seen := make(map[entities.PoolID]bool, len(p.deductions))
	var out []entities.PoolID
	for _, d := range p.deductions {
		if !seen[d.Pool] {
			seen[d.Pool] = true
			out = append(out, d.Pool)
		}
	}
	return out
}

// Compose subtracts the committed grants of every deduction from the base
func (p *Residual) Compose(ctx context.Context, state entities.UpstreamState) (entities.Series, error) {
	capacity, err := p.base.Compose(ctx, state)
	if err != nil {
		return entities.Series{}, err
	}
	for _, d := range p.deductions {
		granted := state.Granted(d.SolutionID, d.Pool).Scale(d.scale())
		capacity = capacity.Sub(granted)
	}
	return capacity.Map(func(_ entities.Year, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}), nil
}
