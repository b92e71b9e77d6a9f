package kafka

import (
	"encoding/json"
	"time"
)

// Event is the envelope written to Kafka for every domain event.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Sequence      uint64          `json:"sequence"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`

	// PartitionKey overrides AggregateID as the message key when set.
	PartitionKey string `json:"-"`
}

// NewEvent builds an envelope around data, which is marshalled as JSON.
func NewEvent(eventID, eventType, aggregateID, aggregateType, source string, occurredAt time.Time, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       eventID,
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		OccurredAt:    occurredAt.UTC(),
		Source:        source,
		Data:          dataBytes,
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithSequence sets the per-process ordering number of the event.
func (e *Event) WithSequence(seq uint64) *Event {
	e.Sequence = seq
	return e
}

// WithPartitionKey sets the message key used instead of AggregateID.
func (e *Event) WithPartitionKey(key string) *Event {
	e.PartitionKey = key
	return e
}

// Key returns the message key: PartitionKey if set, otherwise AggregateID.
func (e *Event) Key() string {
	if e.PartitionKey != "" {
		return e.PartitionKey
	}
	return e.AggregateID
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON bytes.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
