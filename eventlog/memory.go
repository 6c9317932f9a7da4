package eventlog

import (
	"context"
	"sync"
)

// MemorySink accumulates events in process memory. It is the dev sink
// derpd uses when the eventlog kind is "memory" (with no kind configured
// derpd uses NopSink), and by tests asserting on emitted events (grounded on lode.StubClient's
// accept-without-persisting role in lode/sink.go).
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of every event written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ Sink = (*MemorySink)(nil)
