package entities

import (
	"fmt"
	"sort"
	"time"
)

// IntegrationState is the state of a fixed-point integration run
type IntegrationState int

const (
	StateInitial IntegrationState = iota
	StateIterating
	StateConverged
	StateMaxIterationsExceeded
)

// String method for IntegrationState enum
func (s IntegrationState) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateIterating:
		return "ITERATING"
	case StateConverged:
		return "CONVERGED"
	case StateMaxIterationsExceeded:
		return "MAX_ITERATIONS_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the run has finished
func (s IntegrationState) Terminal() bool {
	return s == StateConverged || s == StateMaxIterationsExceeded
}

// ClaimRecord is one resolution outcome for a claim in one year of one pass
type ClaimRecord struct {
	Iteration        int        `json:"iteration"`
	SolutionID       SolutionID `json:"solution_id"`
	Pool             PoolID     `json:"pool"`
	Year             Year       `json:"year"`
	Requested        float64    `json:"requested"`
	Granted          float64    `json:"granted"`
	AdjustmentFactor float64    `json:"adjustment_factor"`
	Clipped          bool       `json:"was_clipped"`
	Overshoot        float64    `json:"overshoot"`
}

// Summary is the caller-facing outcome of a run
type Summary struct {
	RunID            string           `json:"run_id"`
	State            IntegrationState `json:"-"`
	StateName        string           `json:"state"`
	Converged        bool             `json:"converged"`
	Iterations       int              `json:"iterations"`
	ClippedSolutions []SolutionID     `json:"clipped_solutions"`
	Warnings         int              `json:"warnings"`
}

// IntegrationReport records what the integration changed. It is the single
// source of truth for clipping and convergence diagnostics.
type IntegrationReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	records    []ClaimRecord
	warnings   []Warning
	state      IntegrationState
	iterations int
}

// NewIntegrationReport creates an empty report in the INITIAL state
func NewIntegrationReport(runID string) *IntegrationReport {
	return &IntegrationReport{
		RunID:     runID,
		StartedAt: time.Now(),
		records:   make([]ClaimRecord, 0),
		warnings:  make([]Warning, 0),
		state:     StateInitial,
	}
}

// Record stores one resolution outcome. Clipping is judged with
// CapacityTolerance.
func (r *IntegrationReport) Record(iteration int, solutionID SolutionID, pool PoolID, year Year, requested, granted float64) ClaimRecord {
	factor := 1.0
	if requested > 0 {
		factor = clampFactor(granted / requested)
	}
	overshoot := requested - granted
	clipped := overshoot > CapacityTolerance
	if !clipped {
		overshoot = 0
	}
	rec := ClaimRecord{
		Iteration:        iteration,
		SolutionID:       solutionID,
		Pool:             pool,
		Year:             year,
		Requested:        requested,
		Granted:          granted,
		AdjustmentFactor: factor,
		Clipped:          clipped,
		Overshoot:        overshoot,
	}
	r.records = append(r.records, rec)
	return rec
}

// Warn stores a non-fatal diagnostic event
func (r *IntegrationReport) Warn(w Warning) {
	r.warnings = append(r.warnings, w)
}

// SetState moves the report to a new state
func (r *IntegrationReport) SetState(state IntegrationState) {
	r.state = state
	if state.Terminal() {
		r.FinishedAt = time.Now()
	}
}

// SetIterations stores the number of completed passes
func (r *IntegrationReport) SetIterations(n int) {
	r.iterations = n
}

// State returns the current run state
func (r *IntegrationReport) State() IntegrationState {
	return r.state
}

// Iterations returns the number of completed passes
func (r *IntegrationReport) Iterations() int {
	return r.iterations
}

// Records returns a copy of every record
func (r *IntegrationReport) Records() []ClaimRecord {
	out := make([]ClaimRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Warnings returns a copy of every warning
func (r *IntegrationReport) Warnings() []Warning {
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// WarningsOf returns the warnings of one kind
func (r *IntegrationReport) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// IterationRecords returns the records of a single pass
func (r *IntegrationReport) IterationRecords(iteration int) []ClaimRecord {
	var out []ClaimRecord
	for _, rec := range r.records {
		if rec.Iteration == iteration {
			out = append(out, rec)
		}
	}
	return out
}

// FinalRecords returns the records of the last completed pass
func (r *IntegrationReport) FinalRecords() []ClaimRecord {
	return r.IterationRecords(r.iterations)
}

// Lookup returns the record for a claim and year in a given pass
func (r *IntegrationReport) Lookup(iteration int, solutionID SolutionID, pool PoolID, year Year) (ClaimRecord, bool) {
	for _, rec := range r.records {
		if rec.Iteration == iteration && rec.SolutionID == solutionID && rec.Pool == pool && rec.Year == year {
			return rec, true
		}
	}
	return ClaimRecord{}, false
}

// TotalOvershoot returns the clipped amount per solution in the last pass
func (r *IntegrationReport) TotalOvershoot() map[SolutionID]float64 {
	out := make(map[SolutionID]float64)
	for _, rec := range r.FinalRecords() {
		if rec.Clipped {
			out[rec.SolutionID] += rec.Overshoot
		}
	}
	return out
}

// ClippedSolutions returns the solutions clipped in the last pass, sorted
func (r *IntegrationReport) ClippedSolutions() []SolutionID {
	seen := make(map[SolutionID]bool)
	for _, rec := range r.FinalRecords() {
		if rec.Clipped {
			seen[rec.SolutionID] = true
		}
	}
	out := make([]SolutionID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Summary returns converged flag, iteration count and clipped solutions
func (r *IntegrationReport) Summary() Summary {
	return Summary{
		RunID:            r.RunID,
		State:            r.state,
		StateName:        r.state.String(),
		Converged:        r.state == StateConverged,
		Iterations:       r.iterations,
		ClippedSolutions: r.ClippedSolutions(),
		Warnings:         len(r.warnings),
	}
}

// String returns a one-line summary for logs
func (r *IntegrationReport) String() string {
	s := r.Summary()
	return fmt.Sprintf(
		"IntegrationReport{run=%s, state=%s, iterations=%d, clipped=%v, warnings=%d}",
		s.RunID, s.StateName, s.Iterations, s.ClippedSolutions, s.Warnings,
	)
}
