package entities

import (
	"errors"
	"fmt"
)

// ErrNotComposed is wrapped by ResourceUndefinedError when a pool or claim
// series has no value for a year that should have been computed
var ErrNotComposed = errors.New("value not composed")

// ResourceUndefinedError reports an upstream input that is missing for a year.
// It is fatal for the current integration run.
type ResourceUndefinedError struct {
	// Input names the pool, solution or upstream series that is missing
	Input string
	Year  Year
	// Year is meaningless when AllYears is set: the input is missing entirely
	AllYears bool
	Err      error
}

func (e *ResourceUndefinedError) Error() string {
	if e.AllYears {
		return fmt.Sprintf("resource undefined: input %q is missing", e.Input)
	}
	return fmt.Sprintf("resource undefined: input %q has no value for %d", e.Input, e.Year)
}

func (e *ResourceUndefinedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotComposed
}

// NewMissingInputError creates a ResourceUndefinedError for an input that is
// absent for every year
func NewMissingInputError(input string) *ResourceUndefinedError {
	return &ResourceUndefinedError{Input: input, AllYears: true}
}

// ContentionInvariantError reports remaining pool capacity going negative after
// clamped allocation. It indicates a bug in claim computation and must never
// be suppressed.
type ContentionInvariantError struct {
	Pool      PoolID
	Year      Year
	Remaining float64
}

func (e *ContentionInvariantError) Error() string {
	return fmt.Sprintf(
		"contention invariant violated: pool %s has remaining capacity %g in %d",
		e.Pool, e.Remaining, e.Year,
	)
}

// WarningKind classifies non-fatal diagnostic events
type WarningKind int

const (
	NegativeClaimWarning WarningKind = iota
	ConvergenceWarning
	UnknownPrioritySolutionWarning
	// OversubscribedPoolWarning marks a pool whose policy does not enforce
	// the capacity invariant and whose grants exceed capacity
	OversubscribedPoolWarning
)

// String method for WarningKind enum
func (k WarningKind) String() string {
	switch k {
	case NegativeClaimWarning:
		return "NegativeClaim"
	case ConvergenceWarning:
		return "Convergence"
	case UnknownPrioritySolutionWarning:
		return "UnknownPrioritySolution"
	case OversubscribedPoolWarning:
		return "OversubscribedPool"
	default:
		return "Unknown"
	}
}

// Warning is a non-fatal condition accumulated into the IntegrationReport
type Warning struct {
	Kind       WarningKind `json:"kind"`
	Iteration  int         `json:"iteration"`
	SolutionID SolutionID  `json:"solution_id,omitempty"`
	Pool       PoolID      `json:"pool,omitempty"`
	Year       Year        `json:"year,omitempty"`
	Value      float64     `json:"value,omitempty"`
	Message    string      `json:"message"`
}
