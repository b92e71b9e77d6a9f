// Package service orchestrates the aggregates: it loads them from a
// repository, runs a command, persists the outcome and dispatches the events
// the command raised.
package service

import (
	"context"
	"errors"
	"log/slog"

	domainevent "github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/internal/event"
)

// Result is the outcome of a service operation. A failed operation carries
// Err. A successful one may still carry DispatchErr when the state was saved
// but one or more events could not be published.
type Result[T any] struct {
	value       T
	err         error
	dispatchErr error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Fail wraps an error.
func Fail[T any](err error) Result[T] { return Result[T]{err: err} }

func (r Result[T]) withDispatchErr(err error) Result[T] {
	r.dispatchErr = err
	return r
}

// IsOK reports whether the operation succeeded.
func (r Result[T]) IsOK() bool { return r.err == nil }

// Value returns the result value. It is the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, if any.
func (r Result[T]) Err() error { return r.err }

// DispatchErr returns the event publishing failure of a successful operation.
func (r Result[T]) DispatchErr() error { return r.dispatchErr }

// Unwrap returns the value and failure as a pair.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// eventSource is an aggregate with a queue of uncommitted events.
type eventSource interface {
	UncommittedEvents() []domainevent.Event
	MarkEventsAsCommitted()
}

// dispatcher publishes the events of saved aggregates.
type dispatcher struct {
	publisher event.Publisher
	logger    *slog.Logger
}

func newDispatcher(p event.Publisher, logger *slog.Logger) dispatcher {
	if p == nil {
		p = event.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return dispatcher{publisher: p, logger: logger}
}

// dispatch drains the sources in sequence order and publishes each event.
// Publishing continues after a failure. The queues are committed either way:
// the state they describe is already persisted.
func (d dispatcher) dispatch(ctx context.Context, sources ...eventSource) error {
	queues := make([][]domainevent.Event, 0, len(sources))
	for _, src := range sources {
		queues = append(queues, src.UncommittedEvents())
	}
	var errs []error
	for _, e := range domainevent.Merge(queues...) {
		if err := d.publisher.Publish(ctx, e); err != nil {
			d.logger.ErrorContext(ctx, "failed to publish domain event",
				slog.String("event_type", e.Type()),
				slog.String("event_id", e.ID()),
				slog.String("aggregate_id", e.AggregateID()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	for _, src := range sources {
		src.MarkEventsAsCommitted()
	}
	return errors.Join(errs...)
}
