// Package worker runs the periodic cart lifecycle sweeps.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/utafrali/commercecore/internal/service"
)

// CartSweeper is the part of service.CartService the maintenance loop drives.
type CartSweeper interface {
	ExpireCarts(ctx context.Context) service.Result[int]
	AbandonStaleCarts(ctx context.Context, idleFor time.Duration) service.Result[int]
	PurgeExpiredCarts(ctx context.Context, retention time.Duration) service.Result[int]
}

// MaintenanceConfig controls how often the sweeps run and what they target.
type MaintenanceConfig struct {
	Interval time.Duration
	// AbandonAfter is the idle window after which active carts are abandoned.
	// Zero disables the abandon sweep.
	AbandonAfter time.Duration
	// PurgeRetention is how long expired carts are kept. Zero disables purging.
	PurgeRetention time.Duration
}

// Report is the outcome of one maintenance pass.
type Report struct {
	Expired   int
	Abandoned int
	Purged    int
}

// Maintenance expires, abandons and purges carts on a fixed interval.
type Maintenance struct {
	carts  CartSweeper
	cfg    MaintenanceConfig
	logger *slog.Logger
}

// NewMaintenance creates the maintenance worker.
func NewMaintenance(carts CartSweeper, cfg MaintenanceConfig, logger *slog.Logger) *Maintenance {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &Maintenance{
		carts:  carts,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "cart_maintenance")),
	}
}

// Run sweeps on every tick until ctx is cancelled. It always returns nil so
// it can run inside an errgroup without tearing the server down.
func (m *Maintenance) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info("cart maintenance started", slog.Duration("interval", m.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("cart maintenance stopped")
			return nil
		case <-ticker.C:
			report, err := m.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("cart maintenance error", slog.String("error", err.Error()))
			}
			if report != (Report{}) {
				m.logger.Info("cart maintenance pass",
					slog.Int("expired", report.Expired),
					slog.Int("abandoned", report.Abandoned),
					slog.Int("purged", report.Purged),
				)
			}
		}
	}
}

// RunOnce performs a single pass. Expiry runs before abandonment so a cart
// past its expiry ends up Expired rather than Abandoned. A failing sweep does
// not stop the others; all errors are joined.
func (m *Maintenance) RunOnce(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
	)
	collect := func(name string, res service.Result[int]) int {
		if err := res.Err(); err != nil {
			errs = append(errs, err)
			return res.Value()
		}
		if err := res.DispatchErr(); err != nil {
			m.logger.WarnContext(ctx, "maintenance events not fully delivered",
				slog.String("sweep", name),
				slog.String("error", err.Error()),
			)
		}
		return res.Value()
	}

	report.Expired = collect("expire", m.carts.ExpireCarts(ctx))
	if m.cfg.AbandonAfter > 0 {
		report.Abandoned = collect("abandon", m.carts.AbandonStaleCarts(ctx, m.cfg.AbandonAfter))
	}
	if m.cfg.PurgeRetention > 0 {
		report.Purged = collect("purge", m.carts.PurgeExpiredCarts(ctx, m.cfg.PurgeRetention))
	}
	return report, errors.Join(errs...)
}
