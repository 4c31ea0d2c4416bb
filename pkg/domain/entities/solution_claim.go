package entities

import (
	"fmt"
	"math"
)

// SolutionID identifies a solution module, e.g. "composting" or "afforestation:PDS"
type SolutionID string

// SolutionClaim is one solution's requested draw on one pool, expressed in
// the pool's native unit, together with the adjustment currently applied
type SolutionClaim struct {
	solutionID SolutionID
	pool       PoolID
	requested  Series
	factors    map[Year]float64
	changed    bool
}

// NewSolutionClaim creates a validated SolutionClaim with every factor at 1.0
func NewSolutionClaim(solutionID SolutionID, pool PoolID, requested Series) (SolutionClaim, error) {
	if solutionID == "" {
		return SolutionClaim{}, fmt.Errorf("solution id cannot be empty")
	}
	if pool.Category == "" {
		return SolutionClaim{}, fmt.Errorf("pool category cannot be empty")
	}
	return SolutionClaim{
		solutionID: solutionID,
		pool:       pool,
		requested:  requested,
		factors:    map[Year]float64{},
		changed:    true,
	}, nil
}

// SolutionID returns the owning solution
func (c SolutionClaim) SolutionID() SolutionID {
	return c.solutionID
}

// Pool returns the pool the claim draws on
func (c SolutionClaim) Pool() PoolID {
	return c.pool
}

// Changed reports whether the claim changed since the last resolution pass
func (c SolutionClaim) Changed() bool {
	return c.changed
}

// RequestedSeries returns a copy of the raw requested series
func (c SolutionClaim) RequestedSeries() Series {
	return c.requested.clone()
}

// Requested returns the raw, pre-adjustment draw for a year.
// Not-applicable years request nothing.
func (c SolutionClaim) Requested(year Year) (float64, error) {
	if c.requested.IsNotApplicable(year) {
		return 0, nil
	}
	v, ok := c.requested.Value(year)
	if !ok {
		return 0, &ResourceUndefinedError{
			Input: fmt.Sprintf("%s claim on %s", c.solutionID, c.pool),
			Year:  year,
		}
	}
	return v, nil
}

// Factor returns the adjustment factor applied in a year
func (c SolutionClaim) Factor(year Year) float64 {
	if f, ok := c.factors[year]; ok {
		return f
	}
	return 1.0
}

// Adjusted returns requested(year) * factor(year)
func (c SolutionClaim) Adjusted(year Year) (float64, error) {
	want, err := c.Requested(year)
	if err != nil {
		return 0, err
	}
	return want * c.Factor(year), nil
}

func clampFactor(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func (c SolutionClaim) copyFactors() map[Year]float64 {
	out := make(map[Year]float64, len(c.factors))
	for y, f := range c.factors {
		out[y] = f
	}
	return out
}

// ApplyAdjustment returns a new claim with factor applied to every year of
// the requested series. The factor is clamped to [0, 1]: contention only ever
// reduces a claim.
func (c SolutionClaim) ApplyAdjustment(factor float64) SolutionClaim {
	f := clampFactor(factor)
	out := c
	out.factors = make(map[Year]float64, c.requested.Len())
	for _, y := range c.requested.Years() {
		out.factors[y] = f
	}
	out.changed = f != 1.0 || len(c.factors) > 0
	return out
}

// WithGrant returns a new claim whose factor for year makes Adjusted(year)
// equal granted. A zero request keeps factor 1.0; a negative request gets 0.
func (c SolutionClaim) WithGrant(year Year, granted float64) SolutionClaim {
	want := c.requested.ValueOrZero(year)
	factor := 1.0
	switch {
	case want > 0:
		factor = clampFactor(granted / want)
	case want < 0:
		factor = 0
	}
	out := c
	out.factors = c.copyFactors()
	previous := c.Factor(year)
	out.factors[year] = factor
	out.changed = c.changed || previous != factor
	return out
}

// MarkResolved returns a copy with the changed flag cleared
func (c SolutionClaim) MarkResolved() SolutionClaim {
	out := c
	out.changed = false
	return out
}

// AdjustedSeries returns the adjusted values for every defined year
func (c SolutionClaim) AdjustedSeries() Series {
	return c.requested.Map(func(y Year, v float64) float64 {
		return v * c.Factor(y)
	})
}

// String returns a string representation for debugging
func (c SolutionClaim) String() string {
	return fmt.Sprintf("SolutionClaim{%s -> %s, years=%d}", c.solutionID, c.pool, c.requested.Len())
}
