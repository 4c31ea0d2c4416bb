package dto

import (
	"github.com/vsinha/drawdown/pkg/domain/entities"
)

// IntegrationResult contains the complete output of an integration run
type IntegrationResult struct {
	RunID   string
	Horizon entities.Horizon
	Report  *entities.IntegrationReport
	Summary entities.Summary
	// Adoption is the committed adoption per solution and region
	Adoption map[entities.SolutionID]map[string]entities.Series
	// Pools are the pools as composed in the last pass
	Pools []*entities.ResourcePool
}

// Converged reports whether the run reached a fixed point
func (r *IntegrationResult) Converged() bool {
	return r != nil && r.Summary.Converged
}

// AdoptionOf returns the committed adoption of a solution in a region
func (r *IntegrationResult) AdoptionOf(id entities.SolutionID, region string) (entities.Series, bool) {
	regions, ok := r.Adoption[id]
	if !ok {
		return entities.Series{}, false
	}
	s, ok := regions[region]
	return s, ok
}

// PoolCount returns the number of pools resolved in the run
func (r *IntegrationResult) PoolCount() int {
	return len(r.Pools)
}
