package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/cart"
	domainevent "github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/pkg/breaker"
	"github.com/utafrali/commercecore/pkg/httpclient"
	pkgkafka "github.com/utafrali/commercecore/pkg/kafka"
	"github.com/utafrali/commercecore/pkg/logger"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var occurred = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func itemAdded() domainevent.Event {
	return domainevent.New("cart", "cart-1", "cart.item_added", occurred,
		domainevent.NewPayload(domainevent.F("sku", "TSHIRT-M"), domainevent.F("quantity", 2)))
}

func testBreaker(name string) breaker.Config {
	cfg := breaker.DefaultConfig(name)
	cfg.MinRequests = 2
	cfg.Timeout = time.Minute
	return cfg
}

type fakeSender struct {
	topics []string
	events []*pkgkafka.Event
	err    error
}

func (f *fakeSender) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.events = append(f.events, e)
	return nil
}

// ---------------------------------------------------------------------------
// Multi / Recording / Logging
// ---------------------------------------------------------------------------

func TestMulti_PublishesToAllAndJoinsErrors(t *testing.T) {
	ok := NewRecording()
	failing := NewRecording()
	failing.FailOn("cart.item_added", errors.New("sink down"))
	other := NewRecording()

	err := Multi{ok, failing, other}.Publish(context.Background(), itemAdded())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Equal(t, []string{"cart.item_added"}, ok.Types())
	assert.Equal(t, []string{"cart.item_added"}, other.Types())
	assert.Empty(t, failing.Types())
}

func TestRecording_Reset(t *testing.T) {
	r := NewRecording()
	r.FailOn("cart.item_added", errors.New("boom"))
	require.Error(t, r.Publish(context.Background(), itemAdded()))

	r.Reset()
	require.NoError(t, r.Publish(context.Background(), itemAdded()))
	assert.Len(t, r.Events(), 1)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop.Publish(context.Background(), itemAdded()))
}

func TestLogging_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")

	require.NoError(t, NewLogging(l).Publish(ctx, itemAdded()))

	out := buf.String()
	assert.Contains(t, out, `"event_type":"cart.item_added"`)
	assert.Contains(t, out, `"aggregate_id":"cart-1"`)
	assert.Contains(t, out, `"correlation_id":"corr-9"`)
}

// ---------------------------------------------------------------------------
// Kafka
// ---------------------------------------------------------------------------

func TestKafka_PublishBuildsEnvelope(t *testing.T) {
	sender := &fakeSender{}
	p := NewKafka(sender, testBreaker("kafka-envelope"), testLogger())
	e := itemAdded()

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.Publish(ctx, e))

	require.Len(t, sender.events, 1)
	assert.Equal(t, "commerce.cart.events", sender.topics[0])
	env := sender.events[0]
	assert.Equal(t, e.ID(), env.EventID)
	assert.Equal(t, "cart.item_added", env.EventType)
	assert.Equal(t, "cart-1", env.AggregateID)
	assert.Equal(t, e.Sequence(), env.Sequence)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Equal(t, SourceCommerceCore, env.Source)
	assert.JSONEq(t, `{"sku":"TSHIRT-M","quantity":2}`, string(env.Data))
}

func TestKafka_BreakerOpensAfterFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("broker unavailable")}
	p := NewKafka(sender, testBreaker("kafka-trip"), testLogger())

	for range 2 {
		err := p.Publish(context.Background(), itemAdded())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker unavailable")
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	sender.err = nil
	err := p.Publish(context.Background(), itemAdded())
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.Empty(t, sender.events)
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		aggregateType string
		want          string
	}{
		{"product_category", "commerce.product_category.events"},
		{cart.AggregateType, "commerce.cart.events"},
		{cart.AggregateTypeItem, "commerce.cart.events"},
	}
	for _, tt := range tests {
		t.Run(tt.aggregateType, func(t *testing.T) {
			assert.Equal(t, tt.want, TopicFor(tt.aggregateType))
		})
	}
}

func TestKafka_ItemEventsFollowTheirCart(t *testing.T) {
	tests := []struct {
		name    string
		event   domainevent.Event
		wantKey string
	}{
		{
			name: "item event keyed by cart",
			event: domainevent.New(cart.AggregateTypeItem, "item-7", cart.EventItemQuantityChanged, occurred,
				domainevent.NewPayload(domainevent.F("cart_id", "cart-1"), domainevent.F("new_quantity", 3))),
			wantKey: "cart-1",
		},
		{
			name:    "item event without cart id",
			event:   domainevent.New(cart.AggregateTypeItem, "item-7", cart.EventItemQuantityChanged, occurred, nil),
			wantKey: "item-7",
		},
		{
			name:    "cart event",
			event:   itemAdded(),
			wantKey: "cart-1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			p := NewKafka(sender, testBreaker("kafka-"+tt.name), testLogger())

			require.NoError(t, p.Publish(context.Background(), tt.event))

			require.Len(t, sender.events, 1)
			assert.Equal(t, "commerce.cart.events", sender.topics[0])
			assert.Equal(t, tt.wantKey, sender.events[0].Key())
			assert.Equal(t, tt.event.AggregateID(), sender.events[0].AggregateID)
		})
	}
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

func TestWebhook_Delivers(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 2}),
		testBreaker("webhook-ok"), testLogger())

	require.NoError(t, NewWebhook(client, server.URL).Publish(context.Background(), itemAdded()))
	assert.Equal(t, "cart.item_added", received["event_type"])
	assert.Equal(t, "cart-1", received["aggregate_id"])
}

func TestWebhook_RejectedDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"unknown event"}}`))
	}))
	defer server.Close()

	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 2}),
		testBreaker("webhook-rejected"), testLogger())

	err := NewWebhook(client, server.URL).Publish(context.Background(), itemAdded())
	var re *httpclient.ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadRequest, re.Status)
	assert.True(t, strings.Contains(err.Error(), "unknown event"))
}
