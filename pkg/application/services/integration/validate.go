package integration

import (
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/services/validator"
)

// dependentProvider is a provider whose capacity reads grants on other pools
type dependentProvider interface {
	DependsOn() []entities.PoolID
}

// ValidateSetup checks a setup without reading any adoption. Initialize
// rejects the same errors; the result also carries warnings such as pool
// feedback loops and unclaimed pools.
func ValidateSetup(setup Setup) *validator.ValidationResult {
	orderings, mergeErr := entities.MergeOrderings(setup.Orderings)
	scenario := validator.Scenario{Orderings: orderings}
	for _, src := range setup.Sources {
		if src == nil {
			continue
		}
		scenario.Sources = append(scenario.Sources, src.ModuleIdentity())
	}
	for _, p := range setup.Providers {
		if p == nil {
			continue
		}
		scenario.Pools = append(scenario.Pools, p.PoolID())
		if dep, ok := p.(dependentProvider); ok {
			for _, to := range dep.DependsOn() {
				scenario.Dependencies = append(scenario.Dependencies, validator.Dependency{From: p.PoolID(), To: to})
			}
		}
	}
	for _, c := range setup.Claims {
		scenario.Claims = append(scenario.Claims, validator.ClaimRef{
			SolutionID: c.SolutionID,
			Region:     c.Region,
			Pool:       c.Pool,
		})
	}
	result := validator.NewScenarioValidator().Validate(scenario)
	if mergeErr != nil {
		result.Errors = append(result.Errors, mergeErr.Error())
	}
	return result
}
