package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/pkg/httputil"
	"github.com/utafrali/commercecore/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// ---------------------------------------------------------------------------
// RequestLogging
// ---------------------------------------------------------------------------

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var seen string
	h := RequestLogging(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderCorrelationID))
}

func TestRequestLogging_ReusesInboundID(t *testing.T) {
	h := RequestLogging(newTestLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "corr-1", rec.Header().Get(HeaderCorrelationID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-9")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-9", rec.Header().Get(HeaderCorrelationID))
}

func TestRequestLogging_LevelByOutcome(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.EqualValues(t, 500, line["status"])

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.EqualValues(t, 2, line["bytes"])
}

// ---------------------------------------------------------------------------
// Identity and RequestLogger
// ---------------------------------------------------------------------------

func TestIdentity_CopiesHeaders(t *testing.T) {
	var user, session string
	h := Identity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, " user-1 ")
	req.Header.Set(HeaderSessionID, "sess-1")

	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-1", user)
	assert.Equal(t, "sess-1", session)
}

func TestRequireUser(t *testing.T) {
	h := Identity()(RequireUser()(okHandler()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/carts/merge", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, rec).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/merge", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_EnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogging(newTestLogger())(Identity()(RequestLogger(bufferLogger(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.FromContext(r.Context()).Info("inside handler")
		}),
	)))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-7")
	req.Header.Set(HeaderSessionID, "sess-7")

	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "corr-7", line["correlation_id"])
	assert.Equal(t, "sess-7", line["session_id"])
	_, hasUser := line["user_id"]
	assert.False(t, hasUser)
}

// ---------------------------------------------------------------------------
// Recovery and caching
// ---------------------------------------------------------------------------

func TestRecovery_WritesEnvelope(t *testing.T) {
	h := RequestLogging(newTestLogger())(Recovery(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-p")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", e.Code)
	assert.Equal(t, "corr-p", e.RequestID)
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	h := Recovery(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCacheControl(t *testing.T) {
	h := CacheControl(60)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/carts/c1", nil))

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
