// Package event delivers committed domain events to outside sinks: Kafka,
// webhooks, the log, or an in-memory recorder for tests.
package event

import (
	"context"
	"errors"

	domainevent "github.com/utafrali/commercecore/internal/domain/event"
)

// Publisher delivers one domain event. Services call it sequentially, in
// emission order, after the aggregate has been saved.
type Publisher interface {
	Publish(ctx context.Context, e domainevent.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e domainevent.Event) error

func (f PublisherFunc) Publish(ctx context.Context, e domainevent.Event) error { return f(ctx, e) }

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, domainevent.Event) error { return nil })

// Multi fans an event out to every publisher. All publishers are tried; the
// returned error joins their failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e domainevent.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
