// Package events publishes what happens during an integration run. Every
// event belongs to the stream of exactly one run.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is one notification from an integration run
type Event interface {
	ID() string
	Type() string
	RunID() string
	Payload() any
	OccurredAt() time.Time
	// Sequence is the 1-based position in the run stream, assigned on append
	Sequence() int
}

// Handler receives events of the types it subscribed to
type Handler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// Store appends run events and fans them out to subscribers
type Store interface {
	Append(event Event) error
	ReadRun(runID string, fromSequence int) ([]Event, error)
	ReadAll(fromPosition int) ([]Event, error)
	Subscribe(eventTypes []string, handler Handler) error
	Unsubscribe(handler Handler) error
}

// Record is the concrete event carried by the store
type Record struct {
	EventID  string
	Kind     string
	Run      string
	Data     any
	Time     time.Time
	Position int
}

func (r Record) ID() string            { return r.EventID }
func (r Record) Type() string          { return r.Kind }
func (r Record) RunID() string         { return r.Run }
func (r Record) Payload() any          { return r.Data }
func (r Record) OccurredAt() time.Time { return r.Time }
func (r Record) Sequence() int         { return r.Position }

// newRecord stamps a fresh event for a run. The sequence stays zero until the
// store appends it.
func newRecord(kind, runID string, payload any) Record {
	return Record{
		EventID: uuid.NewString(),
		Kind:    kind,
		Run:     runID,
		Data:    payload,
		Time:    time.Now().UTC(),
	}
}
