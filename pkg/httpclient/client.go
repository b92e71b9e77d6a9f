package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Config holds HTTP client configuration
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
	UserAgent       string
}

// DefaultConfig returns sensible defaults for HTTP client
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 20,
		UserAgent:       "commercecore",
	}
}

// Client wraps http.Client with retry logic and better defaults
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a new HTTP client with retry and connection pooling
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

// Do executes the request, retrying network errors and 5xx responses other
// than 501. Request bodies are replayed through GetBody.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if req.GetBody != nil {
				body, berr := req.GetBody()
				if berr != nil {
					return nil, fmt.Errorf("rewind request body: %w", berr)
				}
				req.Body = body
			}
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if isRetryableError(err) && attempt < c.config.MaxRetries {
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < c.config.MaxRetries {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return resp, err
}

// Post performs HTTP POST request with retry
func (c *Client) Post(ctx context.Context, url string, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// backoff doubles RetryWaitMin per attempt and caps it at RetryWaitMax.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.config.RetryWaitMin * time.Duration(1<<uint(attempt-1))
	if wait > c.config.RetryWaitMax || wait <= 0 {
		wait = c.config.RetryWaitMax
	}
	return addJitter(wait)
}

// addJitter spreads d uniformly over [0.75d, 1.25d].
func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := int64(d) / 2
	if spread == 0 {
		return d
	}
	return d - d/4 + time.Duration(rand.Int64N(spread+1))
}

// isRetryableError reports network errors other than context cancellation.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
