package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsRouter(m *HTTPMetrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/carts/{cartID}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "cartID") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})
	return r
}

func TestHTTPMetrics_CountsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := metricsRouter(m)

	for _, id := range []string{"c1", "c2", "missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/carts/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/carts/{cartID}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/carts/{cartID}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestHTTPMetrics_ObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	metricsRouter(m).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/carts/c1", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	var hist *dto.Histogram
	for _, f := range families {
		if f.GetName() == "commercecore_http_request_duration_seconds" {
			hist = f.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.EqualValues(t, 1, hist.GetSampleCount())
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())

	metricsRouter(m).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

// ---------------------------------------------------------------------------
// statusRecorder
// ---------------------------------------------------------------------------

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, rec.status)
}

func TestStatusRecorder_DoesNotDoubleWrap(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())

	assert.Same(t, rec, newStatusRecorder(rec))
}

func TestStatusRecorder_FlushAndHijack(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := newStatusRecorder(inner)
	rec.Flush()
	assert.True(t, inner.Flushed)

	_, _, err := rec.Hijack()
	assert.Error(t, err)

	hj := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	_, _, err = newStatusRecorder(hj).Hijack()
	assert.NoError(t, err)
	assert.True(t, hj.hijacked)
}
