package integration

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/domain/repositories"
)

// Setup is the static input of one integration run
type Setup struct {
	// RunID labels the run; a random UUID is used when empty
	RunID     string
	Horizon   entities.Horizon
	Sources   []repositories.AdoptionSource
	Providers []repositories.ResourcePoolProvider
	Claims    []ClaimSpec
	Orderings []*entities.PriorityOrdering
}

// DefaultOrderingCategory is the ordering applied to pools whose category
// has no ordering of its own
const DefaultOrderingCategory = "*"

// RunContext holds every piece of state of one integration run. It replaces
// process-wide state: nothing outside the context is read or written except
// through the registered adoption sources.
type RunContext struct {
	runID   string
	horizon entities.Horizon

	sources     map[entities.SolutionID]repositories.AdoptionSource
	sourceOrder []entities.SolutionID
	providers   []repositories.ResourcePoolProvider
	claims      []ClaimSpec
	orderings   map[string]*entities.PriorityOrdering

	original  map[sourceRegion]entities.Series
	committed map[sourceRegion]entities.Series
	granted   map[claimKey]entities.Series
	pools     map[entities.PoolID]*entities.ResourcePool
	iteration int
}

var _ DerivationState = (*RunContext)(nil)

// Initialize validates a setup and snapshots the adoption of every source and
// region that a claim refers to
func Initialize(ctx context.Context, setup Setup) (*RunContext, error) {
	if setup.Horizon.FirstYear <= 0 || setup.Horizon.Len() == 0 {
		return nil, fmt.Errorf("run horizon cannot be empty")
	}
	runID := setup.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	run := &RunContext{
		runID:     runID,
		horizon:   setup.Horizon,
		sources:   make(map[entities.SolutionID]repositories.AdoptionSource, len(setup.Sources)),
		orderings: make(map[string]*entities.PriorityOrdering, len(setup.Orderings)),
		original:  make(map[sourceRegion]entities.Series),
		committed: make(map[sourceRegion]entities.Series),
		granted:   make(map[claimKey]entities.Series),
		pools:     make(map[entities.PoolID]*entities.ResourcePool),
	}

	for _, src := range setup.Sources {
		if src == nil {
			return nil, fmt.Errorf("adoption source cannot be nil")
		}
		id := src.ModuleIdentity()
		if id == "" {
			return nil, fmt.Errorf("adoption source has an empty module identity")
		}
		if _, dup := run.sources[id]; dup {
			return nil, fmt.Errorf("adoption source %s registered twice", id)
		}
		run.sources[id] = src
		run.sourceOrder = append(run.sourceOrder, id)
	}

	known := make(map[entities.PoolID]bool, len(setup.Providers))
	for _, p := range setup.Providers {
		if p == nil {
			return nil, fmt.Errorf("pool provider cannot be nil")
		}
		if known[p.PoolID()] {
			return nil, fmt.Errorf("pool %s has more than one provider", p.PoolID())
		}
		known[p.PoolID()] = true
		run.providers = append(run.providers, p)
	}

	seenClaims := make(map[claimKey]bool, len(setup.Claims))
	for _, spec := range setup.Claims {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, ok := run.sources[spec.SolutionID]; !ok {
			return nil, fmt.Errorf("claim references unregistered solution %s", spec.SolutionID)
		}
		if !known[spec.Pool] {
			return nil, fmt.Errorf("claim %s references unknown pool %s", spec.SolutionID, spec.Pool)
		}
		if seenClaims[spec.key()] {
			return nil, fmt.Errorf("solution %s claims pool %s more than once", spec.SolutionID, spec.Pool)
		}
		seenClaims[spec.key()] = true
		run.claims = append(run.claims, spec)
	}

	// per-region topologies each bring an ordering for the same category
	orderings, err := entities.MergeOrderings(setup.Orderings)
	if err != nil {
		return nil, err
	}
	for _, o := range orderings {
		run.orderings[o.Category] = o
	}

	for _, spec := range run.claims {
		key := sourceRegion{solution: spec.SolutionID, region: spec.Region}
		if _, done := run.original[key]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		adoption, err := run.sources[spec.SolutionID].Adoption(spec.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to read adoption of %s in %q: %w", spec.SolutionID, spec.Region, err)
		}
		run.original[key] = adoption
		run.committed[key] = adoption
	}

	return run, nil
}

// RunID returns the run label
func (r *RunContext) RunID() string {
	return r.runID
}

// Horizon returns the model horizon
func (r *RunContext) Horizon() entities.Horizon {
	return r.horizon
}

// Iteration returns the number of committed passes
func (r *RunContext) Iteration() int {
	return r.iteration
}

// Adoption returns the committed adoption of a solution in a region. Regions
// no claim refers to are read straight from the source.
func (r *RunContext) Adoption(id entities.SolutionID, region string) (entities.Series, error) {
	if s, ok := r.committed[sourceRegion{solution: id, region: region}]; ok {
		return s, nil
	}
	src, ok := r.sources[id]
	if !ok {
		return entities.Series{}, entities.NewMissingInputError(fmt.Sprintf("adoption of %s", id))
	}
	return src.Adoption(region)
}

// OriginalAdoption returns the adoption a solution reported before the run
func (r *RunContext) OriginalAdoption(id entities.SolutionID, region string) (entities.Series, error) {
	if s, ok := r.original[sourceRegion{solution: id, region: region}]; ok {
		return s, nil
	}
	return entities.Series{}, entities.NewMissingInputError(fmt.Sprintf("original adoption of %s in %q", id, region))
}

// Granted returns the amounts granted to a claim in the last committed pass.
// Before the first commit every year is zero.
func (r *RunContext) Granted(id entities.SolutionID, pool entities.PoolID) entities.Series {
	if s, ok := r.granted[claimKey{solution: id, pool: pool}]; ok {
		return s
	}
	return entities.ConstantSeries(r.horizon, 0)
}

// Pool returns the pool as composed in the last pass
func (r *RunContext) Pool(id entities.PoolID) (*entities.ResourcePool, bool) {
	p, ok := r.pools[id]
	return p, ok
}

// Pools returns the pools of the last pass sorted by id
func (r *RunContext) Pools() []*entities.ResourcePool {
	out := make([]*entities.ResourcePool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().String() < out[j].ID().String() })
	return out
}

// Ordering returns the priority ordering for a pool category, falling back to
// the default ordering, or nil when neither exists
func (r *RunContext) Ordering(category string) *entities.PriorityOrdering {
	if o, ok := r.orderings[category]; ok {
		return o
	}
	return r.orderings[DefaultOrderingCategory]
}

// Claims returns the claim specs of the run
func (r *RunContext) Claims() []ClaimSpec {
	out := make([]ClaimSpec, len(r.claims))
	copy(out, r.claims)
	return out
}

// Sources returns the registered solution ids in registration order
func (r *RunContext) Sources() []entities.SolutionID {
	out := make([]entities.SolutionID, len(r.sourceOrder))
	copy(out, r.sourceOrder)
	return out
}

// CommittedAdoption returns a copy of every committed adoption series
func (r *RunContext) CommittedAdoption() map[entities.SolutionID]map[string]entities.Series {
	out := make(map[entities.SolutionID]map[string]entities.Series)
	for key, s := range r.committed {
		if out[key.solution] == nil {
			out[key.solution] = make(map[string]entities.Series)
		}
		out[key.solution][key.region] = s
	}
	return out
}
