package event

import (
	"context"
	"fmt"
	"sync"

	domainevent "github.com/utafrali/commercecore/internal/domain/event"
)

// Recording keeps every published event in memory. Failures can be injected
// per event type.
type Recording struct {
	mu     sync.Mutex
	events []domainevent.Event
	failOn map[string]error
}

// NewRecording creates an empty recording publisher.
func NewRecording() *Recording {
	return &Recording{failOn: make(map[string]error)}
}

// FailOn makes Publish return err for events of eventType.
func (r *Recording) FailOn(eventType string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[eventType] = err
}

func (r *Recording) Publish(_ context.Context, e domainevent.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[e.Type()]; ok {
		return fmt.Errorf("publish %s: %w", e.Type(), err)
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns the recorded events in publish order.
func (r *Recording) Events() []domainevent.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domainevent.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recording) Types() []string { return domainevent.Types(r.Events()) }

// Reset forgets recorded events and injected failures.
func (r *Recording) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.failOn = make(map[string]error)
}
