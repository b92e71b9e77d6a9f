package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/httputil"
)

// Identity headers are set by the edge gateway after it authenticates the
// caller. This service trusts them and does no token validation of its own.
const (
	HeaderUserID    = "X-User-ID"
	HeaderSessionID = "X-Session-ID"
)

type contextKeyType string

const (
	userIDKey    contextKeyType = "user_id"
	sessionIDKey contextKeyType = "session_id"
)

// Identity copies the caller's user and guest session ids from the gateway
// headers into the request context.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
				ctx = context.WithValue(ctx, userIDKey, id)
			}
			if id := strings.TrimSpace(r.Header.Get(HeaderSessionID)); id != "" {
				ctx = context.WithValue(ctx, sessionIDKey, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a user id with 401.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing "+HeaderUserID+" header"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the user id stored by Identity.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// SessionIDFromContext returns the guest session id stored by Identity.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
