package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/commercecore/pkg/breaker"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects the request.
var ErrCircuitOpen = breaker.ErrOpen

// CircuitBreakerClient wraps a Client with circuit breaker protection. 5xx
// responses count as failures; 4xx responses do not.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	name    string
}

// NewCircuitBreakerClient wraps an existing HTTP client with a circuit breaker.
func NewCircuitBreakerClient(client *Client, cfg breaker.Config, logger *slog.Logger) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client:  client,
		breaker: breaker.New[*http.Response](cfg, logger, nil),
		logger:  logger,
		name:    cfg.Name,
	}
}

// Do executes an HTTP request through the circuit breaker.
func (c *CircuitBreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, ParseResponseError(resp, c.name)
		}
		return resp, nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "circuit breaker open, request rejected",
			slog.String("breaker", c.name),
		)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Post performs an HTTP POST request through the circuit breaker.
func (c *CircuitBreakerClient) Post(ctx context.Context, url string, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(ctx, req)
}

// State returns the current state of the circuit breaker.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.breaker.State()
}
