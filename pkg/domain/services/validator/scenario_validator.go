// Package validator checks integration scenarios before a run starts.
package validator

import (
	"fmt"
	"sort"

	"github.com/vsinha/drawdown/pkg/domain/entities"
)

// ClaimRef names one claim of a scenario
type ClaimRef struct {
	SolutionID entities.SolutionID
	Region     string
	Pool       entities.PoolID
}

// Dependency records that the capacity of From is computed from grants on To
type Dependency struct {
	From entities.PoolID
	To   entities.PoolID
}

// Scenario is what the validator inspects
type Scenario struct {
	Sources      []entities.SolutionID
	Pools        []entities.PoolID
	Claims       []ClaimRef
	Orderings    []*entities.PriorityOrdering
	Dependencies []Dependency
}

// ScenarioValidator provides validation for scenario integrity
type ScenarioValidator struct{}

// NewScenarioValidator creates a new scenario validator
func NewScenarioValidator() *ScenarioValidator {
	return &ScenarioValidator{}
}

// ValidationResult contains the results of scenario validation
type ValidationResult struct {
	DuplicateClaims []ClaimRef
	UnknownSources  []entities.SolutionID
	UnknownPools    []entities.PoolID
	UnclaimedPools  []entities.PoolID
	UnknownPriority map[string][]entities.SolutionID
	FeedbackLoops   [][]entities.PoolID
	Errors          []string
	Warnings        []string
}

// Valid reports whether the scenario can be run
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns the validation errors as one error, or nil
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("invalid scenario: %v", r.Errors)
}

// Validate performs comprehensive validation of a scenario. Errors block a
// run; warnings describe conditions the run tolerates.
func (v *ScenarioValidator) Validate(s Scenario) *ValidationResult {
	result := &ValidationResult{
		DuplicateClaims: make([]ClaimRef, 0),
		UnknownSources:  make([]entities.SolutionID, 0),
		UnknownPools:    make([]entities.PoolID, 0),
		UnclaimedPools:  make([]entities.PoolID, 0),
		UnknownPriority: make(map[string][]entities.SolutionID),
		FeedbackLoops:   make([][]entities.PoolID, 0),
		Errors:          make([]string, 0),
		Warnings:        make([]string, 0),
	}

	sources := make(map[entities.SolutionID]bool, len(s.Sources))
	for _, id := range s.Sources {
		if sources[id] {
			result.Errors = append(result.Errors, fmt.Sprintf("source %s registered twice", id))
		}
		sources[id] = true
	}
	pools := make(map[entities.PoolID]bool, len(s.Pools))
	for _, id := range s.Pools {
		if pools[id] {
			result.Errors = append(result.Errors, fmt.Sprintf("pool %s has more than one provider", id))
		}
		pools[id] = true
	}

	result.DuplicateClaims = v.detectDuplicateClaims(s.Claims)
	if len(result.DuplicateClaims) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate claims", len(result.DuplicateClaims)))
	}

	claimed := make(map[entities.PoolID]bool)
	reportedSource := make(map[entities.SolutionID]bool)
	reportedPool := make(map[entities.PoolID]bool)
	for _, c := range s.Claims {
		claimed[c.Pool] = true
		if !sources[c.SolutionID] && !reportedSource[c.SolutionID] {
			reportedSource[c.SolutionID] = true
			result.UnknownSources = append(result.UnknownSources, c.SolutionID)
			result.Errors = append(result.Errors, fmt.Sprintf("claim names unregistered solution %s", c.SolutionID))
		}
		if !pools[c.Pool] && !reportedPool[c.Pool] {
			reportedPool[c.Pool] = true
			result.UnknownPools = append(result.UnknownPools, c.Pool)
			result.Errors = append(result.Errors, fmt.Sprintf("claim by %s names unknown pool %s", c.SolutionID, c.Pool))
		}
	}

	for _, id := range s.Pools {
		if !claimed[id] {
			result.UnclaimedPools = append(result.UnclaimedPools, id)
			result.Warnings = append(result.Warnings, fmt.Sprintf("pool %s has no claims", id))
		}
	}

	categories := make(map[string]bool, len(s.Orderings))
	for _, o := range s.Orderings {
		if o == nil {
			continue
		}
		if categories[o.Category] {
			result.Errors = append(result.Errors, fmt.Sprintf("ordering for %s defined twice", o.Category))
		}
		categories[o.Category] = true
		for _, id := range o.Order {
			if !sources[id] {
				result.UnknownPriority[o.Category] = append(result.UnknownPriority[o.Category], id)
				result.Warnings = append(result.Warnings, fmt.Sprintf("ordering for %s names unregistered solution %s", o.Category, id))
			}
		}
	}

	for _, d := range s.Dependencies {
		if !pools[d.From] || !pools[d.To] {
			result.Errors = append(result.Errors, fmt.Sprintf("dependency %s -> %s names an unknown pool", d.From, d.To))
		}
	}
	result.FeedbackLoops = v.detectCycles(v.buildAdjacencyMap(s.Dependencies))
	for _, loop := range result.FeedbackLoops {
		result.Warnings = append(result.Warnings, fmt.Sprintf("pool feedback loop: %v", loop))
	}

	return result
}

// buildAdjacencyMap creates a map of pool -> pools its capacity reads
func (v *ScenarioValidator) buildAdjacencyMap(deps []Dependency) map[entities.PoolID][]entities.PoolID {
	adjacencyMap := make(map[entities.PoolID][]entities.PoolID)
	for _, d := range deps {
		found := false
		for _, to := range adjacencyMap[d.From] {
			if to == d.To {
				found = true
				break
			}
		}
		if !found {
			adjacencyMap[d.From] = append(adjacencyMap[d.From], d.To)
		}
	}
	return adjacencyMap
}

// detectCycles uses DFS to find loops in the pool dependency graph
func (v *ScenarioValidator) detectCycles(adjacencyMap map[entities.PoolID][]entities.PoolID) [][]entities.PoolID {
	visited := make(map[entities.PoolID]bool)
	recursionStack := make(map[entities.PoolID]bool)
	cycles := make([][]entities.PoolID, 0)

	starts := make([]entities.PoolID, 0, len(adjacencyMap))
	for id := range adjacencyMap {
		starts = append(starts, id)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].String() < starts[j].String() })

	for _, id := range starts {
		if !visited[id] {
			v.dfsDetectCycle(id, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}
	return cycles
}

func (v *ScenarioValidator) dfsDetectCycle(
	current entities.PoolID,
	adjacencyMap map[entities.PoolID][]entities.PoolID,
	visited map[entities.PoolID]bool,
	recursionStack map[entities.PoolID]bool,
	path []entities.PoolID,
	cycles *[][]entities.PoolID,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, next := range adjacencyMap[current] {
		if !visited[next] {
			v.dfsDetectCycle(next, adjacencyMap, visited, recursionStack, path, cycles)
			continue
		}
		if !recursionStack[next] {
			continue
		}
		for i, id := range path {
			if id == next {
				cycle := make([]entities.PoolID, 0, len(path)-i+1)
				cycle = append(cycle, path[i:]...)
				cycle = append(cycle, next)
				*cycles = append(*cycles, cycle)
				break
			}
		}
	}

	recursionStack[current] = false
}

// detectDuplicateClaims finds claims by the same solution on the same pool
func (v *ScenarioValidator) detectDuplicateClaims(claims []ClaimRef) []ClaimRef {
	type key struct {
		solution entities.SolutionID
		pool     entities.PoolID
	}
	seen := make(map[key]bool)
	duplicates := make([]ClaimRef, 0)
	for _, c := range claims {
		k := key{solution: c.SolutionID, pool: c.Pool}
		if seen[k] {
			duplicates = append(duplicates, c)
			continue
		}
		seen[k] = true
	}
	return duplicates
}
