package integration

import (
	"context"
	"fmt"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
)

// DerivationState is what claim derivation may read: the committed state plus
// the adoption each source reported before the run started
type DerivationState interface {
	entities.UpstreamState
	OriginalAdoption(id entities.SolutionID, region string) (entities.Series, error)
}

// DeriveFunc computes a claim's requested series in pool units
type DeriveFunc func(ctx context.Context, state DerivationState, spec ClaimSpec) (entities.Series, error)

// ClaimSpec declares that a solution's adoption in a region draws on a pool
type ClaimSpec struct {
	SolutionID entities.SolutionID
	Region     string
	Pool       entities.PoolID
	// Converter turns adoption units into pool units; nil means same unit
	Converter *units.Converter
	// Share scales the converted adoption; zero means 1
	Share float64
	// SplitGroup names claims that together split one adoption across
	// several pools (e.g. land cells). Grants inside a group add up when
	// committed; across groups the most restrictive factor wins.
	SplitGroup string
	// Derive replaces the default derivation from original adoption
	Derive DeriveFunc
}

// key identifies the claim inside a run
func (s ClaimSpec) key() claimKey {
	return claimKey{solution: s.SolutionID, pool: s.Pool}
}

func (s ClaimSpec) share() float64 {
	if s.Share == 0 {
		return 1
	}
	return s.Share
}

// Validate checks the spec is complete
func (s ClaimSpec) Validate() error {
	if s.SolutionID == "" {
		return fmt.Errorf("claim solution id cannot be empty")
	}
	if s.Pool.Category == "" {
		return fmt.Errorf("claim on %s has no pool category", s.SolutionID)
	}
	if s.Share < 0 {
		return fmt.Errorf("claim %s -> %s has negative share %g", s.SolutionID, s.Pool, s.Share)
	}
	return nil
}

// DeriveFromOriginal is the default derivation: the solution's original
// adoption in the spec region, converted to pool units and scaled by share.
func DeriveFromOriginal(ctx context.Context, state DerivationState, spec ClaimSpec) (entities.Series, error) {
	adoption, err := state.OriginalAdoption(spec.SolutionID, spec.Region)
	if err != nil {
		return entities.Series{}, err
	}
	share := spec.share()

	var convErr error
	converted := adoption.Map(func(y entities.Year, v float64) float64 {
		out, err := spec.Converter.Convert(v)
		if err != nil && convErr == nil {
			convErr = fmt.Errorf("converting %s adoption for %d: %w", spec.SolutionID, y, err)
		}
		return out * share
	})
	if convErr != nil {
		return entities.Series{}, convErr
	}
	return converted, nil
}

type claimKey struct {
	solution entities.SolutionID
	pool     entities.PoolID
}

type sourceRegion struct {
	solution entities.SolutionID
	region   string
}
