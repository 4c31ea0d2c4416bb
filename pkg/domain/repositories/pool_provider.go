package repositories

import "github.com/vsinha/drawdown/pkg/domain/entities"

// ResourcePoolProvider composes one pool's capacity from upstream state
type ResourcePoolProvider interface {
	entities.PoolComposer
	PoolID() entities.PoolID
	Unit() string
}

// PoolRepository provides access to the pool providers of a scenario
type PoolRepository interface {
	GetProvider(id entities.PoolID) (ResourcePoolProvider, error)
	GetAllProviders() ([]ResourcePoolProvider, error)
	LoadProviders(providers []ResourcePoolProvider) error
}
