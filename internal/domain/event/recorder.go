package event

import "sort"

// Source is anything that queues events until they are committed.
type Source interface {
	UncommittedEvents() []Event
	MarkEventsAsCommitted()
}

// Recorder is the pending event queue embedded by aggregates.
type Recorder struct {
	pending []Event
}

// Record appends events to the queue.
func (r *Recorder) Record(events ...Event) {
	r.pending = append(r.pending, events...)
}

// UncommittedEvents returns a copy of the queued events.
func (r *Recorder) UncommittedEvents() []Event {
	out := make([]Event, len(r.pending))
	copy(out, r.pending)
	return out
}

// MarkEventsAsCommitted clears the queue.
func (r *Recorder) MarkEventsAsCommitted() {
	r.pending = nil
}

// HasUncommitted reports whether any event is queued.
func (r *Recorder) HasUncommitted() bool { return len(r.pending) > 0 }

// Merge flattens several queues into one, ordered by emission sequence.
func Merge(queues ...[]Event) []Event {
	n := 0
	for _, q := range queues {
		n += len(q)
	}
	out := make([]Event, 0, n)
	for _, q := range queues {
		out = append(out, q...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Types returns the type of each event, in order.
func Types(events []Event) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.eventType
	}
	return types
}

// Clone returns an independent copy of the queue.
func (r Recorder) Clone() Recorder {
	return Recorder{pending: r.UncommittedEvents()}
}
