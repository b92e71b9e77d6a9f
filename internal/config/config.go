// Package config loads the commercecore server configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/pkg/breaker"
	pkgconfig "github.com/utafrali/commercecore/pkg/config"
	"github.com/utafrali/commercecore/pkg/database"
	"github.com/utafrali/commercecore/pkg/logger"
	"github.com/utafrali/commercecore/pkg/middleware"
	"github.com/utafrali/commercecore/pkg/tracing"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all configuration for the commercecore server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Backends. Carts live in memory or Redis; the catalog in memory or
	// Postgres. Categories always live in memory.
	CartStore    string `env:"CART_STORE" envDefault:"memory"`
	ProductStore string `env:"PRODUCT_STORE" envDefault:"memory"`

	// Redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"commerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:""`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"commercecore"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQuery         time.Duration `env:"LOG_SLOW_QUERY" envDefault:"200ms"`

	// Event sinks. Events are always logged; Kafka and the webhook are
	// optional extra sinks.
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	WebhookURL   string   `env:"EVENT_WEBHOOK_URL" envDefault:""`

	// Circuit breaker settings for the event sinks
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Cart lifecycle
	GuestCartTTL        time.Duration `env:"GUEST_CART_TTL" envDefault:"168h"`
	UserCartTTL         time.Duration `env:"USER_CART_TTL" envDefault:"720h"`
	MaintenanceInterval time.Duration `env:"CART_MAINTENANCE_INTERVAL" envDefault:"15m"`
	AbandonAfter        time.Duration `env:"CART_ABANDON_AFTER" envDefault:"24h"`
	PurgeRetention      time.Duration `env:"CART_PURGE_RETENTION" envDefault:"720h"`

	// Rate limiting (per client IP)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load commercecore config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch logger.Format(c.LogFormat) {
	case logger.FormatJSON, logger.FormatText:
	default:
		return fmt.Errorf("LOG_FORMAT must be %q or %q, got %q", logger.FormatJSON, logger.FormatText, c.LogFormat)
	}
	switch c.CartStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("CART_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.CartStore)
	}
	switch c.ProductStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("PRODUCT_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.ProductStore)
	}
	if c.CartStore == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when CART_STORE=redis")
	}
	if c.ProductStore == StorePostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.WebhookURL != "" {
		if _, err := url.ParseRequestURI(c.WebhookURL); err != nil {
			return fmt.Errorf("invalid EVENT_WEBHOOK_URL %q: %w", c.WebhookURL, err)
		}
	}
	if c.GuestCartTTL <= 0 || c.UserCartTTL <= 0 {
		return fmt.Errorf("cart TTLs must be positive")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("CART_MAINTENANCE_INTERVAL must be positive, got %s", c.MaintenanceInterval)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must allow at least one request, got rps=%g burst=%d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the catalog pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:               c.PostgresHost,
		Port:               c.PostgresPort,
		User:               c.PostgresUser,
		Password:           c.PostgresPass,
		DBName:             c.PostgresDB,
		SSLMode:            c.PostgresSSL,
		MaxConns:           c.DBMaxConns,
		MinConns:           c.DBMinConns,
		MaxConnLifetime:    c.DBMaxConnLifetime,
		MaxConnIdleTime:    c.DBMaxConnIdleTime,
		SlowQueryThreshold: c.SlowQuery,
	}
}

// Redis returns the cart store client settings.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPass
	rc.DB = c.RedisDB
	rc.PoolSize = c.RedisPoolSize
	return rc
}

// Breaker returns the circuit breaker settings for the sink called name.
func (c *Config) Breaker(name string) breaker.Config {
	return breaker.Config{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     c.CBInterval,
		Timeout:      c.CBTimeout,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}

// ExpiryPolicy returns the guest and user cart lifetimes.
func (c *Config) ExpiryPolicy() cart.ExpiryPolicy {
	return cart.ExpiryPolicy{GuestTTL: c.GuestCartTTL, UserTTL: c.UserCartTTL}
}

// RateLimit returns the per-client limiter settings.
func (c *Config) RateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{RPS: c.RateLimitRPS, Burst: c.RateLimitBurst}
}

// CORS returns the CORS policy. Development mode allows any origin.
func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	cors.Development = c.IsDevelopment()
	return cors
}

// Tracing returns the OpenTelemetry exporter settings.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	tc := tracing.DefaultConfig(serviceName)
	tc.ServiceVersion = version
	tc.Environment = c.Environment
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	tc.Enabled = c.OTELEnabled
	return tc
}
