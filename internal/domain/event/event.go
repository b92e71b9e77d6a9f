// Package event holds the domain event record and the pending-event queue
// embedded by every aggregate root.
package event

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sequence orders events across aggregates and their nested entities.
var sequence atomic.Uint64

// Event is an immutable record of something that already happened to an aggregate.
type Event struct {
	id            string
	aggregateID   string
	aggregateType string
	eventType     string
	payload       Payload
	occurredAt    time.Time
	seq           uint64
}

// New stamps a new event with a fresh id and the next emission sequence.
func New(aggregateType, aggregateID, eventType string, occurredAt time.Time, payload Payload) Event {
	return Event{
		id:            uuid.NewString(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		eventType:     eventType,
		payload:       payload.clone(),
		occurredAt:    occurredAt.UTC(),
		seq:           sequence.Add(1),
	}
}

func (e Event) ID() string            { return e.id }
func (e Event) AggregateID() string   { return e.aggregateID }
func (e Event) AggregateType() string { return e.aggregateType }
func (e Event) Type() string          { return e.eventType }
func (e Event) OccurredAt() time.Time { return e.occurredAt }

// Sequence is the process-wide emission counter value assigned at creation.
func (e Event) Sequence() uint64 { return e.seq }

// Payload returns a copy of the event payload.
func (e Event) Payload() Payload { return e.payload.clone() }

type eventJSON struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Sequence      uint64    `json:"sequence"`
	Payload       Payload   `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		EventID:       e.id,
		EventType:     e.eventType,
		AggregateID:   e.aggregateID,
		AggregateType: e.aggregateType,
		OccurredAt:    e.occurredAt,
		Sequence:      e.seq,
		Payload:       e.payload,
	})
}
