// Package health serves liveness and readiness probes over registered
// dependency checks (Redis, Postgres, Kafka).
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/commercecore/pkg/httputil"
)

// Checker is a function that checks the health of a dependency.
type Checker func(ctx context.Context) error

// Status represents the health status of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const defaultCheckTimeout = 5 * time.Second

// Response is the JSON response returned by the health endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the result of a single health check.
type CheckResult struct {
	Status   Status `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

type registration struct {
	check    Checker
	critical bool
}

// Handler provides HTTP health check endpoints. A failing critical check
// makes the service unready (503); a failing non-critical one only marks it
// degraded.
type Handler struct {
	mu      sync.RWMutex
	checks  map[string]registration
	timeout time.Duration
}

// NewHandler creates a new health check handler.
func NewHandler() *Handler {
	return &Handler{
		checks:  make(map[string]registration),
		timeout: defaultCheckTimeout,
	}
}

// WithTimeout bounds each readiness probe.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Register adds a critical checker, replacing any checker with the same name.
func (h *Handler) Register(name string, checker Checker) {
	h.RegisterCritical(name, checker)
}

// RegisterCritical adds a checker whose failure makes the service unready.
func (h *Handler) RegisterCritical(name string, checker Checker) {
	h.register(name, checker, true)
}

// RegisterNonCritical adds a checker whose failure only degrades readiness.
func (h *Handler) RegisterNonCritical(name string, checker Checker) {
	h.register(name, checker, false)
}

func (h *Handler) register(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = registration{check: checker, critical: critical}
}

// LivenessHandler reports 200 while the process is running.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Response{
			Status:    StatusUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// ReadinessHandler runs every registered checker concurrently and returns
// 200 (up or degraded) or 503 (a critical check failed).
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}

// Check runs all checkers and aggregates their results.
func (h *Handler) Check(ctx context.Context) Response {
	h.mu.RLock()
	regs := make(map[string]registration, len(h.checks))
	for name, reg := range h.checks {
		regs[name] = reg
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(regs))
		g       errgroup.Group
	)
	for name, reg := range regs {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			res := CheckResult{Status: StatusUp, Critical: reg.critical}
			if err := reg.check(cctx); err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			res.Latency = time.Since(start).String()

			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusUp
	for _, res := range results {
		if res.Status != StatusDown {
			continue
		}
		if res.Critical {
			overall = StatusDown
			break
		}
		overall = StatusDegraded
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    results,
	}
}
