package repositories

import "github.com/vsinha/drawdown/pkg/domain/entities"

// PriorityRepository provides the static priority orderings of a run
type PriorityRepository interface {
	GetOrdering(category string) (*entities.PriorityOrdering, error)
	GetAllOrderings() ([]*entities.PriorityOrdering, error)
	LoadOrderings(orderings []*entities.PriorityOrdering) error
}
