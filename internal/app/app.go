package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/commercecore/internal/config"
	"github.com/utafrali/commercecore/internal/event"
	handler "github.com/utafrali/commercecore/internal/handler/http"
	"github.com/utafrali/commercecore/internal/repository"
	"github.com/utafrali/commercecore/internal/repository/memory"
	pgrepo "github.com/utafrali/commercecore/internal/repository/postgres"
	redisrepo "github.com/utafrali/commercecore/internal/repository/redis"
	"github.com/utafrali/commercecore/internal/service"
	"github.com/utafrali/commercecore/internal/worker"
	"github.com/utafrali/commercecore/pkg/database"
	"github.com/utafrali/commercecore/pkg/health"
	"github.com/utafrali/commercecore/pkg/httpclient"
	pkgkafka "github.com/utafrali/commercecore/pkg/kafka"
	"github.com/utafrali/commercecore/pkg/middleware"
	"github.com/utafrali/commercecore/pkg/tracing"
)

// ServiceName identifies this process in logs, traces and events.
const ServiceName = "commercecore"

// Version is overridden at build time with -ldflags.
var Version = "dev"

// App wires together all dependencies and runs the commercecore server.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb      *redis.Client
	pool     *pgxpool.Pool
	producer *pkgkafka.Producer

	shutdownTracer tracing.ShutdownFunc
	maintenance    *worker.Maintenance
	httpServer     *http.Server

	// stopBackground cancels work started for the router, such as rate
	// limiter cleanup.
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Whatever was opened before a failure is closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.shutdownTracer, err = tracing.Init(ctx, cfg.Tracing(ServiceName, Version))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	checks := health.NewHandler().WithTimeout(3 * time.Second)

	cartRepo, err := a.cartRepository(ctx, checks)
	if err != nil {
		return nil, err
	}
	productRepo, err := a.productRepository(ctx, checks)
	if err != nil {
		return nil, err
	}
	categoryRepo := memory.NewCategoryRepository()

	publisher := a.publisher(checks)

	carts := service.NewCartService(cartRepo, publisher, logger, cfg.ExpiryPolicy())
	products := service.NewProductService(productRepo, categoryRepo, publisher, logger)
	categories := service.NewCategoryService(categoryRepo, publisher, logger)

	a.maintenance = worker.NewMaintenance(carts, worker.MaintenanceConfig{
		Interval:       cfg.MaintenanceInterval,
		AbandonAfter:   cfg.AbandonAfter,
		PurgeRetention: cfg.PurgeRetention,
	}, logger)

	bgCtx, stop := context.WithCancel(context.Background())
	a.stopBackground = stop

	rateLimit := cfg.RateLimit()
	router := handler.NewRouter(bgCtx, handler.RouterConfig{
		Carts:          carts,
		Products:       products,
		Categories:     categories,
		Health:         checks,
		Metrics:        middleware.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Gatherer:       prometheus.DefaultGatherer,
		Logger:         logger,
		CORS:           cfg.CORS(),
		RateLimit:      &rateLimit,
		RequestTimeout: cfg.RequestTimeout,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		ExposeInternal: cfg.IsDevelopment(),
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

func (a *App) cartRepository(ctx context.Context, checks *health.Handler) (repository.CartRepository, error) {
	if a.cfg.CartStore != config.StoreRedis {
		a.logger.Info("using in-memory cart store")
		return memory.NewCartRepository(), nil
	}

	rdb, err := database.NewRedisClient(ctx, a.cfg.Redis(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	checks.RegisterCritical("redis", database.RedisChecker(rdb))
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)
	return redisrepo.NewCartRepository(rdb, a.cfg.ExpiryPolicy(), a.cfg.PurgeRetention), nil
}

func (a *App) productRepository(ctx context.Context, checks *health.Handler) (repository.ProductRepository, error) {
	if a.cfg.ProductStore != config.StorePostgres {
		a.logger.Info("using in-memory product store")
		return memory.NewProductRepository(), nil
	}

	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, pgrepo.Migrations(), a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "catalog"); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	checks.RegisterCritical("postgres", database.PostgresChecker(pool))
	return pgrepo.NewProductRepository(pool), nil
}

// publisher assembles the event sinks. Events are always logged; Kafka and
// the webhook are added when configured, each behind its own breaker.
func (a *App) publisher(checks *health.Handler) event.Publisher {
	sinks := event.Multi{event.NewLogging(a.logger)}

	if a.cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger).
			WithMetrics(pkgkafka.NewProducerMetrics(prometheus.DefaultRegisterer))
		sinks = append(sinks, event.NewKafka(a.producer, a.cfg.Breaker("kafka-events"), a.logger))
		checks.RegisterNonCritical("kafka", a.producer.Ping)
		a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	}

	if a.cfg.WebhookURL != "" {
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			a.cfg.Breaker("event-webhook"),
			a.logger,
		)
		sinks = append(sinks, event.NewWebhook(client, a.cfg.WebhookURL))
		a.logger.Info("event webhook enabled")
	}
	return sinks
}

// Run starts the HTTP server and the cart maintenance worker, and blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.maintenance.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully stops all components: the HTTP server drains first,
// then buffered traces and events are flushed before stores are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}
	a.closeResources()

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
