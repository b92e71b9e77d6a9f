package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		tp.Shutdown(context.Background()) //nolint:errcheck
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func tracedRouter(status int) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Tracing())
	r.Post("/api/v1/carts/{cartID}/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	out := make(map[string]string)
	for _, a := range s.Attributes {
		out[string(a.Key)] = a.Value.Emit()
	}
	return out
}

func TestTracing_NamesSpanByRoute(t *testing.T) {
	exporter := setupTestTracer(t)

	tracedRouter(http.StatusCreated).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/v1/carts/c1/items", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/v1/carts/{cartID}/items", spans[0].Name)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "/api/v1/carts/{cartID}/items", attrs["http.route"])
	assert.Equal(t, "201", attrs["http.status_code"])
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	tracedRouter(http.StatusServiceUnavailable).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/api/v1/carts/c1/items", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	exporter := setupTestTracer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/c1/items", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()

	tracedRouter(http.StatusOK).ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
	assert.Contains(t, rec.Header().Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}
