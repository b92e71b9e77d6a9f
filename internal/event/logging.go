package event

import (
	"context"
	"log/slog"

	domainevent "github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/pkg/logger"
)

// Logging writes each event to the logger at Info level. It never fails.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates a logging publisher.
func NewLogging(l *slog.Logger) *Logging {
	return &Logging{logger: l}
}

func (p *Logging) Publish(ctx context.Context, e domainevent.Event) error {
	logger.WithContext(ctx, p.logger).InfoContext(ctx, "domain event",
		slog.String("event_id", e.ID()),
		slog.String("event_type", e.Type()),
		slog.String("aggregate_type", e.AggregateType()),
		slog.String("aggregate_id", e.AggregateID()),
		slog.Uint64("sequence", e.Sequence()),
		slog.Any("payload", e.Payload()),
	)
	return nil
}
