package repositories

import "github.com/vsinha/drawdown/pkg/domain/entities"

// AdoptionSource is implemented by each solution module taking part in an
// integration. SetAdoption is the only point where integration results are
// pushed back into a solution.
type AdoptionSource interface {
	ModuleIdentity() entities.SolutionID
	Adoption(region string) (entities.Series, error)
	SetAdoption(region string, series entities.Series) error
}

// SourceRepository registers adoption sources by identity
type SourceRepository interface {
	GetSource(id entities.SolutionID) (AdoptionSource, error)
	GetAllSources() ([]AdoptionSource, error)
	Register(source AdoptionSource) error
}
