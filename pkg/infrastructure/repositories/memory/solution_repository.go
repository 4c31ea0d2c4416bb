package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
)

// Solution is an in-memory solution module holding adoption per region
type Solution struct {
	id       entities.SolutionID
	adoption map[string]entities.Series
	writes   int
	mutex    sync.RWMutex
}

// NewSolution creates a new in-memory solution with the given adoption
func NewSolution(id entities.SolutionID, adoption map[string]entities.Series) *Solution {
	s := &Solution{
		id:       id,
		adoption: make(map[string]entities.Series, len(adoption)),
	}
	for region, series := range adoption {
		s.adoption[region] = series
	}
	return s
}

// Verify interface compliance
var _ repositories.AdoptionSource = (*Solution)(nil)

// ModuleIdentity returns the solution id
func (s *Solution) ModuleIdentity() entities.SolutionID {
	return s.id
}

// Adoption returns the adoption for a region
func (s *Solution) Adoption(region string) (entities.Series, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	series, ok := s.adoption[region]
	if !ok {
		return entities.Series{}, entities.NewMissingInputError(fmt.Sprintf("adoption of %s in %q", s.id, region))
	}
	return series, nil
}

// SetAdoption replaces the adoption for a region
func (s *Solution) SetAdoption(region string, series entities.Series) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.adoption[region] = series
	s.writes++
	return nil
}

// Regions returns the regions with adoption, sorted
func (s *Solution) Regions() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	regions := make([]string, 0, len(s.adoption))
	for region := range s.adoption {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions
}

// Writes returns how many times SetAdoption was called
func (s *Solution) Writes() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.writes
}

// SourceRepository provides in-memory adoption source registration
type SourceRepository struct {
	sources    []repositories.AdoptionSource
	sourcesMap map[entities.SolutionID]int
}

// NewSourceRepository creates a new in-memory source repository
func NewSourceRepository(expectedSources int) *SourceRepository {
	return &SourceRepository{
		sources:    make([]repositories.AdoptionSource, 0, expectedSources),
		sourcesMap: make(map[entities.SolutionID]int, expectedSources),
	}
}

// Verify interface compliance
var _ repositories.SourceRepository = (*SourceRepository)(nil)

// Register adds a source; identities must be unique
func (r *SourceRepository) Register(source repositories.AdoptionSource) error {
	if source == nil {
		return fmt.Errorf("source cannot be nil")
	}
	id := source.ModuleIdentity()
	if id == "" {
		return fmt.Errorf("source module identity cannot be empty")
	}
	if _, exists := r.sourcesMap[id]; exists {
		return fmt.Errorf("source already registered: %s", id)
	}
	r.sourcesMap[id] = len(r.sources)
	r.sources = append(r.sources, source)
	return nil
}

// GetSource returns the source registered under id
func (r *SourceRepository) GetSource(id entities.SolutionID) (repositories.AdoptionSource, error) {
	index, exists := r.sourcesMap[id]
	if !exists {
		return nil, fmt.Errorf("source %s: %w", id, repositories.ErrNotFound)
	}
	return r.sources[index], nil
}

// GetAllSources returns every source in registration order
func (r *SourceRepository) GetAllSources() ([]repositories.AdoptionSource, error) {
	sources := make([]repositories.AdoptionSource, len(r.sources))
	copy(sources, r.sources)
	return sources, nil
}
