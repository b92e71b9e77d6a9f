package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/event"
	"github.com/utafrali/commercecore/internal/repository/memory"
	"github.com/utafrali/commercecore/internal/service"
	"github.com/utafrali/commercecore/pkg/health"
	"github.com/utafrali/commercecore/pkg/middleware"
)

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testServer struct {
	handler http.Handler
	events  *event.Recording
}

// newTestServer wires the production router over in-memory repositories.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()
	rec := event.NewRecording()
	categoryRepo := memory.NewCategoryRepository()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewRouter(ctx, RouterConfig{
		Carts:      service.NewCartService(memory.NewCartRepository(), rec, logger, cart.DefaultExpiryPolicy()),
		Products:   service.NewProductService(memory.NewProductRepository(), categoryRepo, rec, logger),
		Categories: service.NewCategoryService(categoryRepo, rec, logger),
		Health:     health.NewHandler(),
		Gatherer:   prometheus.NewRegistry(),
		Logger:     logger,
		CORS:       middleware.DefaultCORSConfig(),
	})
	return &testServer{handler: h, events: rec}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Rule    string            `json:"rule"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type call struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func (s *testServer) do(t *testing.T, c call) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// data decodes the data envelope of a successful response into T.
func data[T any](t *testing.T, env envelope) T {
	t.Helper()
	require.Nil(t, env.Error, "unexpected error envelope")
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func session(id string) map[string]string { return map[string]string{middleware.HeaderSessionID: id} }
func asUser(id string) map[string]string  { return map[string]string{middleware.HeaderUserID: id} }
