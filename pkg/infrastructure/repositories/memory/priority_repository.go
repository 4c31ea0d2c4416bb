package memory

import (
	"fmt"
	"sort"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
)

// PriorityRepository provides in-memory priority ordering storage
type PriorityRepository struct {
	orderings map[string]*entities.PriorityOrdering
}

// NewPriorityRepository creates a new in-memory priority repository
func NewPriorityRepository() *PriorityRepository {
	return &PriorityRepository{
		orderings: make(map[string]*entities.PriorityOrdering),
	}
}

// Verify interface compliance
var _ repositories.PriorityRepository = (*PriorityRepository)(nil)

// LoadOrderings loads orderings; a category may appear only once
func (r *PriorityRepository) LoadOrderings(orderings []*entities.PriorityOrdering) error {
	for _, o := range orderings {
		if o == nil {
			continue
		}
		if _, exists := r.orderings[o.Category]; exists {
			return fmt.Errorf("duplicate priority ordering for category %s", o.Category)
		}
		r.orderings[o.Category] = o
	}
	return nil
}

// GetOrdering returns the ordering of a category
func (r *PriorityRepository) GetOrdering(category string) (*entities.PriorityOrdering, error) {
	o, exists := r.orderings[category]
	if !exists {
		return nil, fmt.Errorf("priority ordering %s: %w", category, repositories.ErrNotFound)
	}
	return o, nil
}

// GetAllOrderings returns every ordering sorted by category
func (r *PriorityRepository) GetAllOrderings() ([]*entities.PriorityOrdering, error) {
	orderings := make([]*entities.PriorityOrdering, 0, len(r.orderings))
	for _, o := range r.orderings {
		orderings = append(orderings, o)
	}
	sort.Slice(orderings, func(i, j int) bool {
		return orderings[i].Category < orderings[j].Category
	})
	return orderings, nil
}
