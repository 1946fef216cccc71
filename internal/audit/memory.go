package audit

import (
	"context"
	"sync"
)

// MemorySink is an in-memory implementation of Sink for tests and one-shot
// runs.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemorySink creates a new in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Compile-time interface check.
var _ Sink = (*MemorySink)(nil)

// Emit records the event.
func (s *MemorySink) Emit(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of all recorded events in emit order.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns recorded events of one type, in emit order.
func (s *MemorySink) ByType(eventType string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
