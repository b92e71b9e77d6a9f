package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/commercecore/pkg/logger"
)

// HeaderCorrelationID carries the request correlation id in and out.
const HeaderCorrelationID = "X-Correlation-ID"

// RequestLogging assigns each request a correlation id (reusing an inbound
// X-Correlation-ID or X-Request-ID) and logs one line per request. Health
// probes are logged at Debug so they do not drown the access log.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(HeaderCorrelationID)
			if correlationID == "" {
				correlationID = r.Header.Get("X-Request-ID")
			}
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			r = r.WithContext(ctx)
			w.Header().Set(HeaderCorrelationID, correlationID)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case strings.HasPrefix(r.URL.Path, "/health/"), r.URL.Path == "/metrics":
				level = slog.LevelDebug
			}
			l.Log(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", correlationID),
			)
		})
	}
}
