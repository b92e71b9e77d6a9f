// Package breaker builds sony/gobreaker circuit breakers with shared
// settings, state logging and a Prometheus state gauge.
package breaker

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned while a breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

// Config holds configuration for a circuit breaker.
type Config struct {
	// Name identifies this breaker (used in metrics and logs).
	Name string

	// MaxRequests is the maximum number of requests allowed in the half-open state.
	// 0 means 1 request is allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing internal counts.
	// 0 means internal counts are never cleared during the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio is the ratio of failures to total requests that trips the breaker.
	FailureRatio float64

	// MinRequests is the minimum number of requests needed before the failure ratio is evaluated.
	MinRequests uint32
}

// DefaultConfig returns sensible defaults for a circuit breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var stateGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// StateValue maps gobreaker states to gauge values.
func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// New creates a breaker that trips once MinRequests calls have been seen and
// the failure ratio reaches FailureRatio. isSuccessful, when not nil, decides
// which errors count as failures.
func New[T any](cfg Config, logger *slog.Logger, isSuccessful func(error) bool) *gobreaker.CircuitBreaker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			stateGauge.WithLabelValues(name).Set(StateValue(to))
		},
		IsSuccessful: isSuccessful,
	}

	stateGauge.WithLabelValues(cfg.Name).Set(0)
	return gobreaker.NewCircuitBreaker[T](settings)
}
