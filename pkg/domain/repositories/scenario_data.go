package repositories

import (
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/services/units"
)

// AdoptionRecord is one year of a solution's adoption in a region
type AdoptionRecord struct {
	SolutionID entities.SolutionID
	Region     string
	Year       entities.Year
	Value      float64
	// NotApplicable marks a year in which the solution does not exist
	NotApplicable bool
	Unit          units.Unit
}

// PoolRecord is one year of a pool's capacity
type PoolRecord struct {
	Category      string
	Region        string
	Year          entities.Year
	Capacity      float64
	NotApplicable bool
	Unit          units.Unit
}

// ClaimRecord declares that a solution's adoption in a region draws on a
// pool. Share defaults to 1.
type ClaimRecord struct {
	SolutionID entities.SolutionID
	Region     string
	Pool       entities.PoolID
	Share      float64
	SplitGroup string
}

// ScenarioData is the raw tabular content of a scenario
type ScenarioData struct {
	Adoption []AdoptionRecord
	Pools    []PoolRecord
	Claims   []ClaimRecord
}

// ScenarioLoader reads the tabular content of a scenario from a location
type ScenarioLoader interface {
	LoadScenario(location string) (ScenarioData, error)
}
