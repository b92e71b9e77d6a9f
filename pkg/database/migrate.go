package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const migrationSuffix = ".up.sql"

// isConnectionError reports whether err is a transient connection problem
// rather than a SQL error. Only connection errors are retried.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; everything else is a SQL error.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"EOF",
		"server closed the connection unexpectedly",
		"could not connect",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// pendingMigrations lists the *.up.sql files at the root of migrations in
// lexical order.
func pendingMigrations(migrations fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), migrationSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// RunMigrations applies every *.up.sql file in migrations that is not yet
// recorded in schema_migrations, each inside its own transaction. Connection
// failures are retried with backoff; SQL errors are returned immediately.
func RunMigrations(ctx context.Context, pool DBTX, migrations fs.FS, logger *slog.Logger) error {
	names, err := pendingMigrations(migrations)
	if err != nil {
		return err
	}
	return withRetry(ctx, logger, "run migrations", isConnectionError, func() error {
		return applyMigrations(ctx, pool, migrations, names, logger)
	})
}

func applyMigrations(ctx context.Context, pool DBTX, migrations fs.FS, names []string, logger *slog.Logger) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, name := range names {
		var applied bool
		err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			logger.Debug("migration already applied", slog.String("version", name))
			continue
		}

		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyOne(ctx, pool, name, string(content)); err != nil {
			return err
		}
		logger.Info("migration applied", slog.String("version", name))
	}
	return nil
}

func applyOne(ctx context.Context, pool DBTX, name, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, sql); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
