package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var occurred = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleEvent(t *testing.T) *Event {
	t.Helper()
	e, err := NewEvent("evt-1", "cart.item_added", "cart-123", "cart", "commercecore", occurred,
		map[string]any{"sku": "TSHIRT-M", "quantity": 2})
	require.NoError(t, err)
	return e
}

// --- Event tests ---

func TestNewEvent_Fields(t *testing.T) {
	e := sampleEvent(t).WithSequence(7).WithCorrelationID("corr-abc")

	assert.Equal(t, "evt-1", e.EventID)
	assert.Equal(t, "cart.item_added", e.EventType)
	assert.Equal(t, "cart-123", e.AggregateID)
	assert.Equal(t, "cart", e.AggregateType)
	assert.Equal(t, "commercecore", e.Source)
	assert.Equal(t, uint64(7), e.Sequence)
	assert.Equal(t, "corr-abc", e.CorrelationID)
	assert.Equal(t, occurred, e.OccurredAt)
	assert.JSONEq(t, `{"sku":"TSHIRT-M","quantity":2}`, string(e.Data))
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("evt-1", "test.event", "agg-1", "test", "svc", occurred, make(chan int))
	require.Error(t, err)
}

func TestEvent_Marshal_Unmarshal(t *testing.T) {
	original := sampleEvent(t).WithSequence(3)

	data, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, original.Sequence, restored.Sequence)
	assert.True(t, original.OccurredAt.Equal(restored.OccurredAt))
	assert.JSONEq(t, string(original.Data), string(restored.Data))
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}

// --- Topic tests ---

func TestTopic(t *testing.T) {
	tests := []struct {
		domain, kind, want string
	}{
		{"cart", "events", "commerce.cart.events"},
		{"product", "events", "commerce.product.events"},
		{"product_category", "events", "commerce.product_category.events"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Topic(tt.domain, tt.kind))
		})
	}
}

// --- Producer tests ---

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092", "broker2:9092"})
	assert.Len(t, cfg.Brokers, 2)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, testLogger())

	e := sampleEvent(t).WithCorrelationID("corr-1")
	require.NoError(t, p.Publish(context.Background(), "commerce.cart.events", e))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "commerce.cart.events", msg.Topic)
	assert.Equal(t, []byte("cart-123"), msg.Key)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "cart.item_added", carrier.Get("event_type"))
	assert.Equal(t, "commercecore", carrier.Get("source"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)
}

func TestProducer_Publish_PartitionKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"defaults to aggregate id", "", "cart-123"},
		{"override", "cart-9", "cart-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			p := NewProducerWithWriter(w, nil, testLogger())

			require.NoError(t, p.Publish(context.Background(), "commerce.cart.events", sampleEvent(t).WithPartitionKey(tt.key)))

			require.Len(t, w.messages, 1)
			assert.Equal(t, []byte(tt.want), w.messages[0].Key)
		})
	}
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: assert.AnError}
	p := NewProducerWithWriter(w, nil, testLogger())

	err := p.Publish(context.Background(), "commerce.cart.events", sampleEvent(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "commerce.cart.events")
}

func TestNewProducer_CreatesInstance(t *testing.T) {
	// NewProducer does not connect until the first write.
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, testLogger())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
