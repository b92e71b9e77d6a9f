package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
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
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		tp.Shutdown(context.Background()) //nolint:errcheck
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func runQuery(tracer *QueryTracer, sql string, tag string, err error) {
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: sql})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag(tag), Err: err})
}

func TestQueryTracer_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	runQuery(&QueryTracer{}, "UPDATE products SET data = $1 WHERE id = $2", "UPDATE 1", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.UPDATE", span.Name)
	assert.Equal(t, codes.Unset, span.Status.Code)

	attrs := make(map[string]string)
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "UPDATE", attrs["db.operation"])
	assert.Equal(t, "1", attrs["db.rows_affected"])
}

func TestQueryTracer_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	runQuery(&QueryTracer{}, "insert into products values ($1)", "", errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.INSERT", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events, "error event should be recorded")
}

func TestQueryTracer_ChildOfCallerSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	ctx, parent := otel.Tracer("test").Start(context.Background(), "parent")

	tracer := &QueryTracer{}
	qctx := tracer.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{})
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

func TestQueryTracer_SlowQueryLogged(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	tracer := &QueryTracer{SlowThreshold: time.Nanosecond, Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	runQuery(tracer, "SELECT data FROM products", "SELECT 0", errors.New("canceling statement"))

	out := buf.String()
	assert.Contains(t, out, "slow query detected")
	assert.Contains(t, out, "SELECT data FROM products")
	assert.Contains(t, out, "canceling statement")
}

func TestQueryTracer_FastQueryNotLogged(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer
	tracer := &QueryTracer{SlowThreshold: time.Hour, Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	runQuery(tracer, "SELECT 1", "SELECT 1", nil)

	assert.Empty(t, buf.String())
}

func TestQueryTracer_EndWithoutStart(t *testing.T) {
	(&QueryTracer{}).TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
}

func TestOperationOf(t *testing.T) {
	assert.Equal(t, "SELECT", operationOf("  select count(*) FROM products"))
	assert.Equal(t, "WITH", operationOf("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "QUERY", operationOf(""))
}
