package testutil

import (
	"context"
	"sync"
)

// RecordedEvent is one event captured by EventRecorder
type RecordedEvent struct {
	Name  string
	Attrs map[string]any
}

// EventRecorder is an in-memory events.Sink for tests
type EventRecorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

// Emit implements events.Sink
func (r *EventRecorder) Emit(_ context.Context, name string, attrs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	r.events = append(r.events, RecordedEvent{Name: name, Attrs: copied})
}

// Events returns a copy of the captured events
func (r *EventRecorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// Named returns the captured events with the given name
func (r *EventRecorder) Named(name string) []RecordedEvent {
	var out []RecordedEvent
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
