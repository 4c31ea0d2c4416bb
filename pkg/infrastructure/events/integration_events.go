package events

import (
	"github.com/vsinha/drawdown/pkg/domain/entities"
)

const (
	IntegrationStartedEvent       = "integration.started"
	IntegrationConvergedEvent     = "integration.converged"
	IntegrationMaxIterationsEvent = "integration.max_iterations"
	IntegrationAbortedEvent       = "integration.aborted"

	ClaimClippedEvent      = "claim.clipped"
	AdoptionCommittedEvent = "adoption.committed"
)

type IntegrationStarted struct {
	RunID     string `json:"run_id"`
	Sources   int    `json:"sources"`
	Pools     int    `json:"pools"`
	Claims    int    `json:"claims"`
	FirstYear int    `json:"first_year"`
	LastYear  int    `json:"last_year"`
}

type IntegrationFinished struct {
	Summary entities.Summary `json:"summary"`
}

type IntegrationAborted struct {
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
	Reason    string `json:"reason"`
}

type ClaimClipped struct {
	RunID          string              `json:"run_id"`
	Iteration      int                 `json:"iteration"`
	SolutionID     entities.SolutionID `json:"solution_id"`
	Pool           entities.PoolID     `json:"pool"`
	YearsClipped   int                 `json:"years_clipped"`
	TotalOvershoot float64             `json:"total_overshoot"`
}

type AdoptionCommitted struct {
	RunID      string              `json:"run_id"`
	Iteration  int                 `json:"iteration"`
	SolutionID entities.SolutionID `json:"solution_id"`
	Region     string              `json:"region"`
	Adoption   entities.Series     `json:"-"`
}

func NewIntegrationStartedEvent(data IntegrationStarted) Event {
	return newRecord(IntegrationStartedEvent, data.RunID, data)
}

func NewIntegrationFinishedEvent(summary entities.Summary) Event {
	eventType := IntegrationMaxIterationsEvent
	if summary.Converged {
		eventType = IntegrationConvergedEvent
	}
	return newRecord(eventType, summary.RunID, IntegrationFinished{Summary: summary})
}

func NewIntegrationAbortedEvent(runID string, iteration int, reason error) Event {
	return newRecord(IntegrationAbortedEvent, runID, IntegrationAborted{
		RunID:     runID,
		Iteration: iteration,
		Reason:    reason.Error(),
	})
}

func NewClaimClippedEvent(data ClaimClipped) Event {
	return newRecord(ClaimClippedEvent, data.RunID, data)
}

func NewAdoptionCommittedEvent(data AdoptionCommitted) Event {
	return newRecord(AdoptionCommittedEvent, data.RunID, data)
}
