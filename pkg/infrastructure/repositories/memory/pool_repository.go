package memory

import (
	"fmt"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
)

// PoolRepository provides in-memory pool provider storage
type PoolRepository struct {
	providers    []repositories.ResourcePoolProvider
	providersMap map[entities.PoolID]int
}

// NewPoolRepository creates a new in-memory pool repository
func NewPoolRepository() *PoolRepository {
	return &PoolRepository{
		providers:    []repositories.ResourcePoolProvider{},
		providersMap: make(map[entities.PoolID]int),
	}
}

// Verify interface compliance
var _ repositories.PoolRepository = (*PoolRepository)(nil)

// LoadProviders loads providers into the repository; pool ids must be unique
func (r *PoolRepository) LoadProviders(providers []repositories.ResourcePoolProvider) error {
	for _, p := range providers {
		if err := r.AddProvider(p); err != nil {
			return err
		}
	}
	return nil
}

// AddProvider adds one provider
func (r *PoolRepository) AddProvider(provider repositories.ResourcePoolProvider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	id := provider.PoolID()
	if _, exists := r.providersMap[id]; exists {
		return fmt.Errorf("duplicate provider for pool %s", id)
	}
	r.providersMap[id] = len(r.providers)
	r.providers = append(r.providers, provider)
	return nil
}

// GetProvider returns the provider of a pool
func (r *PoolRepository) GetProvider(id entities.PoolID) (repositories.ResourcePoolProvider, error) {
	index, exists := r.providersMap[id]
	if !exists {
		return nil, fmt.Errorf("pool %s: %w", id, repositories.ErrNotFound)
	}
	return r.providers[index], nil
}

// GetAllProviders returns every provider in load order
func (r *PoolRepository) GetAllProviders() ([]repositories.ResourcePoolProvider, error) {
	providers := make([]repositories.ResourcePoolProvider, len(r.providers))
	copy(providers, r.providers)
	return providers, nil
}
