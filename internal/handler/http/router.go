package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/commercecore/internal/service"
	"github.com/utafrali/commercecore/pkg/health"
	"github.com/utafrali/commercecore/pkg/httputil"
	"github.com/utafrali/commercecore/pkg/middleware"
)

// catalogMaxAge is the Cache-Control lifetime for public catalog reads.
const catalogMaxAge = 60

// RouterConfig carries the services and cross-cutting settings the router
// needs. Metrics, RateLimit and Health are optional.
type RouterConfig struct {
	Carts      *service.CartService
	Products   *service.ProductService
	Categories *service.CategoryService

	Health   *health.Handler
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	CORS           middleware.CORSConfig
	RateLimit      *middleware.RateLimitConfig
	RequestTimeout time.Duration
	PprofCIDRs     []string
	// ExposeInternal includes internal error detail in 5xx bodies.
	ExposeInternal bool
}

// NewRouter creates a chi router with all commercecore routes registered.
// ctx bounds background work started by middleware, such as rate limiter
// cleanup.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	errs := httputil.ErrorWriter{Logger: logger, ExposeInternal: cfg.ExposeInternal}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Identity())
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(ctx, *cfg.RateLimit, logger))
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "route not found"},
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "METHOD_NOT_ALLOWED", Message: r.Method + " is not allowed here"},
		})
	})

	// Health check endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	carts := NewCartHandler(cfg.Carts, errs)
	products := NewProductHandler(cfg.Products, errs)
	categories := NewCategoryHandler(cfg.Categories, errs)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/carts", func(r chi.Router) {
			r.Use(middleware.NoStore())
			carts.Routes(r)
		})
		r.Route("/products", func(r chi.Router) {
			r.Use(middleware.CacheControl(catalogMaxAge))
			products.Routes(r)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Use(middleware.CacheControl(catalogMaxAge))
			categories.Routes(r)
		})
	})

	return r
}
