// Package database opens the Postgres pool and Redis client behind the
// product and cart repositories, and carries their schema migration,
// tracing and pool metrics plumbing.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// SlowQueryThreshold logs statements at Warn when they exceed it. Zero
	// disables slow query logging.
	SlowQueryThreshold time.Duration
}

// DefaultPostgresConfig returns pool defaults for the product catalog.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:               "localhost",
		Port:               5432,
		User:               "commerce",
		DBName:             "commercecore",
		SSLMode:            "disable",
		MaxConns:           20,
		MinConns:           2,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    30 * time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// DSN returns the PostgreSQL connection URL. Credentials are escaped.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 1 * time.Second
	retryJitterFraction  = 0.25
)

// retryBackoff returns the wait before retry attempt (0-indexed) with ±25%
// jitter around 1s, 2s, 4s.
func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := defaultRetryBaseWait << attempt
	jitter := time.Duration(float64(base) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
	return base + jitter
}

// withRetry runs fn up to defaultRetryAttempts times while retryable reports
// the failure as transient. A nil retryable retries every error.
func withRetry(ctx context.Context, logger *slog.Logger, what string, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := range defaultRetryAttempts {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == defaultRetryAttempts-1 {
			break
		}
		wait := retryBackoff(attempt)
		if logger != nil {
			logger.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", defaultRetryAttempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context canceled during retry: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, defaultRetryAttempts, err)
}

// NewPostgresPool connects to PostgreSQL, retrying startup failures with
// backoff. Every query on the pool is traced by QueryTracer.
func NewPostgresPool(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.ConnConfig.Tracer = &QueryTracer{
		SlowThreshold: cfg.SlowQueryThreshold,
		Logger:        logger,
	}

	var pool *pgxpool.Pool
	err = withRetry(ctx, logger, "connect to postgres", nil, func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// PostgresChecker returns a readiness probe for pool.
func PostgresChecker(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		return nil
	}
}
