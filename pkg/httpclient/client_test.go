package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{
		Timeout:         5 * time.Second,
		MaxRetries:      retries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 10,
		UserAgent:       "commercecore-test",
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.RetryWaitMin)
	assert.Equal(t, 5*time.Second, cfg.RetryWaitMax)
	assert.Equal(t, "commercecore", cfg.UserAgent)
}

func TestPost_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "commercecore-test", r.Header.Get("User-Agent"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name":"test"}`, string(body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	resp, err := New(fastConfig(0)).Post(context.Background(), server.URL, "application/json", []byte(`{"name":"test"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDo_Retries5xxAndReplaysBody(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"n":1}`, string(body))
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := New(fastConfig(3)).Post(context.Background(), server.URL, "application/json", []byte(`{"n":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestDo_DoesNotRetry501(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer server.Close()

	resp, err := New(fastConfig(3)).Post(context.Background(), server.URL, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDo_DoesNotRetry4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	resp, err := New(fastConfig(3)).Post(context.Background(), server.URL, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDo_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastConfig(10)
	cfg.RetryWaitMin = 100 * time.Millisecond
	cfg.RetryWaitMax = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(cfg).Post(ctx, server.URL, "application/json", nil)
	require.Error(t, err)
}

func TestPost_InvalidURL(t *testing.T) {
	_, err := New(fastConfig(0)).Post(context.Background(), "://invalid", "application/json", nil)
	require.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(context.DeadlineExceeded))
	assert.True(t, isRetryableError(&timeoutError{}))
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func TestAddJitter_Range(t *testing.T) {
	const base = time.Second
	var minVal, maxVal time.Duration
	for i := range 200 {
		d := addJitter(base)
		if i == 0 || d < minVal {
			minVal = d
		}
		if i == 0 || d > maxVal {
			maxVal = d
		}
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
	assert.Greater(t, maxVal-minVal, 50*time.Millisecond)
}

func TestAddJitter_ZeroDuration(t *testing.T) {
	assert.Equal(t, time.Duration(0), addJitter(0))
}
