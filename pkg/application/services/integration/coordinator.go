// Package integration drives the fixed-point loop that reconciles solution
// adoption with the shared resource pools it draws on.
package integration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/vsinha/drawdown/pkg/application/dto"
	"github.com/vsinha/drawdown/pkg/application/services/contention"
	"github.com/vsinha/drawdown/pkg/domain/entities"
	"github.com/vsinha/drawdown/pkg/infrastructure/events"
)

const (
	DefaultMaxIterations        = 10
	DefaultConvergenceTolerance = 1e-9
)

// Config bounds the fixed-point iteration
type Config struct {
	MaxIterations int
	// ConvergenceTolerance is relative: |a-b| <= tol*max(1, |a|, |b|)
	ConvergenceTolerance float64
	// CapacityTolerance is the absolute tolerance used when granting claims
	CapacityTolerance float64
	// Workers bounds parallel pool resolution; below 2 resolves sequentially
	Workers int
}

// DefaultConfig returns the standard iteration bounds
func DefaultConfig() Config {
	return Config{
		MaxIterations:        DefaultMaxIterations,
		ConvergenceTolerance: DefaultConvergenceTolerance,
		CapacityTolerance:    entities.CapacityTolerance,
		Workers:              1,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.ConvergenceTolerance < 0 || math.IsNaN(c.ConvergenceTolerance) {
		return fmt.Errorf("convergence tolerance must be non-negative, got %g", c.ConvergenceTolerance)
	}
	if c.CapacityTolerance < 0 || math.IsNaN(c.CapacityTolerance) {
		return fmt.Errorf("capacity tolerance must be non-negative, got %g", c.CapacityTolerance)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	return nil
}

// Coordinator runs resolution passes until claims stop changing or the
// iteration bound is reached
type Coordinator struct {
	config     Config
	resolver   *contention.Resolver
	logger     *zap.Logger
	eventStore events.Store
	state      entities.IntegrationState
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventStore publishes run events to store
func WithEventStore(store events.Store) Option {
	return func(c *Coordinator) {
		c.eventStore = store
	}
}

// NewCoordinator creates a coordinator in the INITIAL state
func NewCoordinator(config Config, opts ...Option) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		config: config,
		logger: zap.NewNop(),
		state:  entities.StateInitial,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resolver = contention.NewResolver(
		contention.WithTolerance(config.CapacityTolerance),
		contention.WithWorkers(config.Workers),
		contention.WithLogger(c.logger),
	)
	return c, nil
}

// State returns the state of the current or last run
func (c *Coordinator) State() entities.IntegrationState {
	return c.state
}

// Config returns the coordinator configuration
func (c *Coordinator) Config() Config {
	return c.config
}

// Pass is the uncommitted outcome of one resolution pass
type Pass struct {
	Pools       []*entities.ResourcePool
	Resolutions []*contention.PoolResolution

	requested map[claimKey]entities.Series
	granted   map[claimKey]entities.Series
}

// Granted returns the amounts granted to a claim in this pass
func (p *Pass) Granted(id entities.SolutionID, pool entities.PoolID) (entities.Series, bool) {
	s, ok := p.granted[claimKey{solution: id, pool: pool}]
	return s, ok
}

// Requested returns the clamped amounts a claim asked for in this pass
func (p *Pass) Requested(id entities.SolutionID, pool entities.PoolID) (entities.Series, bool) {
	s, ok := p.requested[claimKey{solution: id, pool: pool}]
	return s, ok
}

// Allocations returns every allocation of the pass in pool order
func (p *Pass) Allocations() []contention.Allocation {
	var out []contention.Allocation
	for _, res := range p.Resolutions {
		out = append(out, res.Allocations...)
	}
	return out
}

// sameGrants compares the grants of two passes with a relative tolerance
func (p *Pass) sameGrants(other *Pass, tol float64) bool {
	if other == nil || len(p.granted) != len(other.granted) {
		return false
	}
	for key, s := range p.granted {
		prev, ok := other.granted[key]
		if !ok || !s.WithinRelative(prev, tol) {
			return false
		}
	}
	return true
}

// Pass recomputes every pool and claim against the committed state of run
// and resolves them. Nothing is committed.
func (c *Coordinator) Pass(ctx context.Context, run *RunContext) (*Pass, error) {
	pools := make([]*entities.ResourcePool, 0, len(run.providers))
	index := make(map[entities.PoolID]int, len(run.providers))
	for _, provider := range run.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, ok := run.pools[provider.PoolID()]
		if !ok {
			seed, err := entities.NewResourcePool(provider.PoolID(), provider.Unit(), run.horizon, entities.Series{})
			if err != nil {
				return nil, err
			}
			current = seed
		}
		pool, err := current.Recompute(ctx, provider, run)
		if err != nil {
			return nil, err
		}
		index[pool.ID()] = len(pools)
		pools = append(pools, pool)
	}

	grouped := make([]contention.PoolClaims, len(pools))
	for i, pool := range pools {
		grouped[i] = contention.PoolClaims{
			Pool:     pool,
			Ordering: run.Ordering(pool.ID().Category),
		}
	}
	for _, spec := range run.claims {
		derive := spec.Derive
		if derive == nil {
			derive = DeriveFromOriginal
		}
		requested, err := derive(ctx, run, spec)
		if err != nil {
			return nil, fmt.Errorf("failed to derive claim %s -> %s: %w", spec.SolutionID, spec.Pool, err)
		}
		claim, err := entities.NewSolutionClaim(spec.SolutionID, spec.Pool, requested.Restrict(run.horizon))
		if err != nil {
			return nil, err
		}
		i := index[spec.Pool]
		grouped[i].Claims = append(grouped[i].Claims, claim)
	}

	resolutions, err := c.resolver.ResolveAll(ctx, grouped, run.horizon.Years())
	if err != nil {
		return nil, err
	}

	requested := make(map[claimKey]map[entities.Year]float64)
	granted := make(map[claimKey]map[entities.Year]float64)
	for _, res := range resolutions {
		for _, a := range res.Allocations {
			key := claimKey{solution: a.SolutionID, pool: a.Pool}
			if requested[key] == nil {
				requested[key] = make(map[entities.Year]float64)
				granted[key] = make(map[entities.Year]float64)
			}
			requested[key][a.Year] = a.Requested
			granted[key][a.Year] = a.Granted
		}
	}

	pass := &Pass{
		Pools:       pools,
		Resolutions: resolutions,
		requested:   make(map[claimKey]entities.Series, len(requested)),
		granted:     make(map[claimKey]entities.Series, len(granted)),
	}
	for key, values := range requested {
		pass.requested[key] = entities.NewSeries(values)
		pass.granted[key] = entities.NewSeries(granted[key])
	}
	return pass, nil
}

// Run iterates until convergence or the iteration bound. A pass that fails
// aborts the run; adoption committed by earlier passes is kept.
func (c *Coordinator) Run(ctx context.Context, run *RunContext) (*dto.IntegrationResult, error) {
	if run == nil {
		return nil, fmt.Errorf("run context cannot be nil")
	}

	report := entities.NewIntegrationReport(run.RunID())
	c.state = entities.StateIterating
	report.SetState(c.state)

	logger := c.logger.With(zap.String("run_id", run.RunID()))
	logger.Info("integration started",
		zap.Int("sources", len(run.sources)),
		zap.Int("pools", len(run.providers)),
		zap.Int("claims", len(run.claims)),
		zap.Int("max_iterations", c.config.MaxIterations),
	)
	c.publish(events.NewIntegrationStartedEvent(events.IntegrationStarted{
		RunID:     run.RunID(),
		Sources:   len(run.sources),
		Pools:     len(run.providers),
		Claims:    len(run.claims),
		FirstYear: int(run.horizon.FirstYear),
		LastYear:  int(run.horizon.LastYear),
	}))
	c.warnUnknownPriorities(run, report)

	var previous *Pass
	converged := false
	for iteration := 1; iteration <= c.config.MaxIterations; iteration++ {
		logger.Debug("integration pass", zap.Int("iteration", iteration))

		pass, err := c.Pass(ctx, run)
		if err != nil {
			return nil, c.abort(logger, run, iteration, fmt.Errorf("integration pass %d: %w", iteration, err))
		}
		c.record(run, report, iteration, pass)

		if err := c.commit(run, iteration, pass); err != nil {
			return nil, c.abort(logger, run, iteration, fmt.Errorf("committing pass %d: %w", iteration, err))
		}
		report.SetIterations(iteration)

		if pass.sameGrants(previous, c.config.ConvergenceTolerance) {
			converged = true
			break
		}
		previous = pass
	}

	if converged {
		c.state = entities.StateConverged
	} else {
		c.state = entities.StateMaxIterationsExceeded
		report.Warn(entities.Warning{
			Kind:      entities.ConvergenceWarning,
			Iteration: report.Iterations(),
			Message: fmt.Sprintf(
				"claims still changing after %d iterations; keeping the last committed state",
				c.config.MaxIterations,
			),
		})
		logger.Warn("integration did not converge", zap.Int("iterations", report.Iterations()))
	}
	report.SetState(c.state)

	summary := report.Summary()
	logger.Info("integration finished",
		zap.String("state", summary.StateName),
		zap.Int("iterations", summary.Iterations),
		zap.Int("clipped_solutions", len(summary.ClippedSolutions)),
		zap.Int("warnings", summary.Warnings),
	)
	c.publish(events.NewIntegrationFinishedEvent(summary))

	return &dto.IntegrationResult{
		RunID:    run.RunID(),
		Horizon:  run.horizon,
		Report:   report,
		Summary:  summary,
		Adoption: run.CommittedAdoption(),
		Pools:    run.Pools(),
	}, nil
}

// abort leaves no terminal state behind
func (c *Coordinator) abort(logger *zap.Logger, run *RunContext, iteration int, err error) error {
	c.state = entities.StateInitial
	logger.Error("integration aborted", zap.Int("iteration", iteration), zap.Error(err))
	c.publish(events.NewIntegrationAbortedEvent(run.RunID(), iteration, err))
	return err
}

// record stores the allocations and diagnostics of a pass in the report
func (c *Coordinator) record(run *RunContext, report *entities.IntegrationReport, iteration int, pass *Pass) {
	for i, res := range pass.Resolutions {
		clipped := make(map[entities.SolutionID]*events.ClaimClipped)
		var order []entities.SolutionID
		grantedByYear := make(map[entities.Year]float64)

		for _, a := range res.Allocations {
			report.Record(iteration, a.SolutionID, a.Pool, a.Year, a.Requested, a.Granted)
			grantedByYear[a.Year] += a.Granted

			if a.Negative {
				report.Warn(entities.Warning{
					Kind:       entities.NegativeClaimWarning,
					Iteration:  iteration,
					SolutionID: a.SolutionID,
					Pool:       a.Pool,
					Year:       a.Year,
					Value:      a.RawRequested,
					Message:    fmt.Sprintf("negative claim %g clamped to zero", a.RawRequested),
				})
			}
			if !a.Clipped {
				continue
			}
			ev, ok := clipped[a.SolutionID]
			if !ok {
				ev = &events.ClaimClipped{
					RunID:      run.RunID(),
					Iteration:  iteration,
					SolutionID: a.SolutionID,
					Pool:       a.Pool,
				}
				clipped[a.SolutionID] = ev
				order = append(order, a.SolutionID)
			}
			ev.YearsClipped++
			ev.TotalOvershoot += a.Overshoot
		}

		for _, id := range order {
			c.publish(events.NewClaimClippedEvent(*clipped[id]))
		}

		if res.Policy.Shared() {
			continue
		}
		pool := pass.Pools[i]
		for _, year := range run.horizon.Years() {
			capacity, err := pool.Capacity(year)
			if err != nil {
				continue
			}
			if grantedByYear[year] > capacity+c.config.CapacityTolerance {
				report.Warn(entities.Warning{
					Kind:      entities.OversubscribedPoolWarning,
					Iteration: iteration,
					Pool:      pool.ID(),
					Year:      year,
					Value:     grantedByYear[year] - capacity,
					Message:   fmt.Sprintf("%s policy granted %g over capacity", res.Policy, grantedByYear[year]-capacity),
				})
			}
		}
	}
}

// warnUnknownPriorities reports ordering entries that name no registered
// source, and claims on a strict-priority pool whose ordering does not rank
// their solution
func (c *Coordinator) warnUnknownPriorities(run *RunContext, report *entities.IntegrationReport) {
	categories := make([]string, 0, len(run.orderings))
	for category := range run.orderings {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, id := range run.orderings[category].Order {
			if _, ok := run.sources[id]; ok {
				continue
			}
			report.Warn(entities.Warning{
				Kind:       entities.UnknownPrioritySolutionWarning,
				SolutionID: id,
				Pool:       entities.PoolID{Category: category},
				Message:    fmt.Sprintf("priority list %s names unregistered solution %s", category, id),
			})
		}
	}

	for _, spec := range run.claims {
		ordering := run.Ordering(spec.Pool.Category)
		if ordering == nil || ordering.Policy != entities.StrictPriority || ordering.Lists(spec.SolutionID) {
			continue
		}
		report.Warn(entities.Warning{
			Kind:       entities.UnknownPrioritySolutionWarning,
			SolutionID: spec.SolutionID,
			Pool:       spec.Pool,
			Message:    fmt.Sprintf("priority list %s does not rank %s; it is served after ranked claims", ordering.Category, spec.SolutionID),
		})
	}
}

// splitTotals accumulates requested and granted amounts of one split group
type splitTotals struct {
	requested map[entities.Year]float64
	granted   map[entities.Year]float64
}

// adoptionFactors returns, per source region, the factor to apply to the
// original adoption: grants add up inside a split group and the most
// restrictive group wins
func (c *Coordinator) adoptionFactors(run *RunContext, pass *Pass) map[sourceRegion]map[entities.Year]float64 {
	groups := make(map[sourceRegion]map[string]*splitTotals)
	for _, spec := range run.claims {
		sr := sourceRegion{solution: spec.SolutionID, region: spec.Region}
		name := spec.SplitGroup
		if name == "" {
			name = "pool:" + spec.Pool.String()
		}
		if groups[sr] == nil {
			groups[sr] = make(map[string]*splitTotals)
		}
		totals, ok := groups[sr][name]
		if !ok {
			totals = &splitTotals{
				requested: make(map[entities.Year]float64),
				granted:   make(map[entities.Year]float64),
			}
			groups[sr][name] = totals
		}
		requested := pass.requested[spec.key()]
		granted := pass.granted[spec.key()]
		for _, year := range run.horizon.Years() {
			totals.requested[year] += requested.ValueOrZero(year)
			totals.granted[year] += granted.ValueOrZero(year)
		}
	}

	factors := make(map[sourceRegion]map[entities.Year]float64, len(groups))
	for sr, byGroup := range groups {
		perYear := make(map[entities.Year]float64)
		for _, year := range run.horizon.Years() {
			factor := 1.0
			for _, totals := range byGroup {
				want := totals.requested[year]
				if want <= c.config.CapacityTolerance {
					continue
				}
				factor = math.Min(factor, totals.granted[year]/want)
			}
			perYear[year] = math.Max(0, math.Min(1, factor))
		}
		factors[sr] = perYear
	}
	return factors
}

// commit writes the adoption implied by a pass to every source. A failed
// write restores the sources already written in this commit.
func (c *Coordinator) commit(run *RunContext, iteration int, pass *Pass) error {
	factors := c.adoptionFactors(run, pass)

	keys := make([]sourceRegion, 0, len(factors))
	for sr := range factors {
		keys = append(keys, sr)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].solution != keys[j].solution {
			return keys[i].solution < keys[j].solution
		}
		return keys[i].region < keys[j].region
	})

	updated := make(map[sourceRegion]entities.Series, len(keys))
	for _, sr := range keys {
		perYear := factors[sr]
		updated[sr] = run.original[sr].Map(func(y entities.Year, v float64) float64 {
			if f, ok := perYear[y]; ok {
				return v * f
			}
			return v
		})
	}

	written := make([]sourceRegion, 0, len(keys))
	for _, sr := range keys {
		if err := run.sources[sr.solution].SetAdoption(sr.region, updated[sr]); err != nil {
			return errors.Join(
				fmt.Errorf("failed to set adoption of %s in %q: %w", sr.solution, sr.region, err),
				c.rollback(run, written),
			)
		}
		written = append(written, sr)
	}

	for _, sr := range keys {
		run.committed[sr] = updated[sr]
		c.publish(events.NewAdoptionCommittedEvent(events.AdoptionCommitted{
			RunID:      run.RunID(),
			Iteration:  iteration,
			SolutionID: sr.solution,
			Region:     sr.region,
			Adoption:   updated[sr],
		}))
	}
	run.granted = pass.granted
	run.pools = make(map[entities.PoolID]*entities.ResourcePool, len(pass.Pools))
	for _, pool := range pass.Pools {
		run.pools[pool.ID()] = pool
	}
	run.iteration++

	c.logger.Debug("pass committed",
		zap.String("run_id", run.RunID()),
		zap.Int("iteration", iteration),
		zap.Int("adoptions", len(keys)),
	)
	return nil
}

// rollback restores the previously committed adoption of written sources
func (c *Coordinator) rollback(run *RunContext, written []sourceRegion) error {
	var errs []error
	for i := len(written) - 1; i >= 0; i-- {
		sr := written[i]
		if err := run.sources[sr.solution].SetAdoption(sr.region, run.committed[sr]); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore adoption of %s in %q: %w", sr.solution, sr.region, err))
		}
	}
	return errors.Join(errs...)
}

// publish sends an event when a store is configured. Event delivery failures
// are logged and never fail the run.
func (c *Coordinator) publish(event events.Event) {
	if c.eventStore == nil {
		return
	}
	if err := c.eventStore.Append(event); err != nil {
		c.logger.Warn("event delivery failed", zap.String("type", event.Type()), zap.Error(err))
	}
}
