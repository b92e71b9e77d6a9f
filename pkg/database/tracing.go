package database

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/commercecore/pkg/database"

// QueryTracer is a pgx.QueryTracer that opens a client span per statement
// and logs statements slower than SlowThreshold.
type QueryTracer struct {
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

type queryTraceKey struct{}

type queryTrace struct {
	span      trace.Span
	start     time.Time
	operation string
	statement string
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := operationOf(data.SQL)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
			attribute.String("db.statement", data.SQL),
		),
	)
	return context.WithValue(ctx, queryTraceKey{}, &queryTrace{
		span:      span,
		start:     time.Now(),
		operation: op,
		statement: data.SQL,
	})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qt, ok := ctx.Value(queryTraceKey{}).(*queryTrace)
	if !ok {
		return
	}
	if data.Err != nil {
		qt.span.RecordError(data.Err)
		qt.span.SetStatus(codes.Error, data.Err.Error())
	} else {
		qt.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	qt.span.End()

	if t.SlowThreshold <= 0 || t.Logger == nil {
		return
	}
	if elapsed := time.Since(qt.start); elapsed >= t.SlowThreshold {
		attrs := []any{
			slog.String("operation", qt.operation),
			slog.String("statement", qt.statement),
			slog.Duration("duration", elapsed),
		}
		if data.Err != nil {
			attrs = append(attrs, slog.String("error", data.Err.Error()))
		}
		t.Logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}

// operationOf returns the leading SQL keyword, upper-cased.
func operationOf(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "QUERY"
	}
	return strings.ToUpper(fields[0])
}
