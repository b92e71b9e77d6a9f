package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/commercecore/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context, enriched with the
// correlation id, the caller's user or session id and the active trace. Mount
// it after RequestLogging, Identity and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := UserIDFromContext(ctx); id != "" {
				ctx = logger.WithUserID(ctx, id)
			}
			if id := SessionIDFromContext(ctx); id != "" {
				ctx = logger.WithSessionID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
