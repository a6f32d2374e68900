package events

import (
	"context"
	"sync"
)

// Publisher defines the interface for publishing domain events
type Publisher interface {
	// Publish publishes an event to the message broker
	Publish(ctx context.Context, exchange string, event *Event, headers Headers) error

	// Close closes the publisher connection
	Close() error
}

// Recorder keeps published events in memory for tests asserting on emitted events.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, _ string, event *Event, _ Headers) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Close() error {
	return nil
}
