package events

import (
	"errors"
	"fmt"
	"sync"
)

// InMemoryEventStore keeps every run stream in memory. Subscribers are
// notified synchronously, in subscription order, after the event is stored.
type InMemoryEventStore struct {
	mu          sync.RWMutex
	runs        map[string][]Record
	log         []Record
	subscribers map[string][]Handler
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		runs:        make(map[string][]Record),
		subscribers: make(map[string][]Handler),
	}
}

var _ Store = (*InMemoryEventStore)(nil)

// Append stores the event at the end of its run stream. Handler failures are
// joined and returned after the event is stored.
func (s *InMemoryEventStore) Append(event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.RunID() == "" {
		return fmt.Errorf("%s event has no run id", event.Type())
	}

	s.mu.Lock()
	stored := Record{
		EventID:  event.ID(),
		Kind:     event.Type(),
		Run:      event.RunID(),
		Data:     event.Payload(),
		Time:     event.OccurredAt(),
		Position: len(s.runs[event.RunID()]) + 1,
	}
	s.runs[stored.Run] = append(s.runs[stored.Run], stored)
	s.log = append(s.log, stored)
	handlers := append([]Handler(nil), s.subscribers[stored.Kind]...)
	s.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if !h.CanHandle(stored.Kind) {
			continue
		}
		if err := h.Handle(stored); err != nil {
			errs = append(errs, fmt.Errorf("handling %s: %w", stored.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// ReadRun returns the events of one run starting at fromSequence
func (s *InMemoryEventStore) ReadRun(runID string, fromSequence int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.runs[runID]
	if fromSequence < 1 {
		fromSequence = 1
	}
	if fromSequence > len(stream) {
		return []Event{}, nil
	}
	return toEvents(stream[fromSequence-1:]), nil
}

// ReadAll returns every stored event starting at a 0-based log position
func (s *InMemoryEventStore) ReadAll(fromPosition int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}
	if fromPosition >= len(s.log) {
		return []Event{}, nil
	}
	return toEvents(s.log[fromPosition:]), nil
}

// EventsOfType returns every stored event of one type, oldest first
func (s *InMemoryEventStore) EventsOfType(eventType string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, r := range s.log {
		if r.Kind == eventType {
			out = append(out, r)
		}
	}
	return out
}

func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}
	return nil
}

func (s *InMemoryEventStore) Unsubscribe(handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for eventType, handlers := range s.subscribers {
		kept := handlers[:0:0]
		for _, h := range handlers {
			if h != handler {
				kept = append(kept, h)
			}
		}
		s.subscribers[eventType] = kept
	}
	return nil
}

func toEvents(records []Record) []Event {
	out := make([]Event, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
