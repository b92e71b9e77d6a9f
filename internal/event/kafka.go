package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/commercecore/internal/domain/cart"
	domainevent "github.com/utafrali/commercecore/internal/domain/event"
	"github.com/utafrali/commercecore/pkg/breaker"
	pkgkafka "github.com/utafrali/commercecore/pkg/kafka"
	"github.com/utafrali/commercecore/pkg/logger"
)

// SourceCommerceCore identifies events originating from this service.
const SourceCommerceCore = "commercecore"

// KafkaSender is the part of pkg/kafka.Producer the publisher needs.
type KafkaSender interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Kafka publishes domain events to one topic per aggregate type, e.g.
// commerce.cart.events, keyed by aggregate id. Events of entities owned by
// another aggregate go to the owner's topic keyed by the owner's id, so they
// stay ordered with it. Calls go through a circuit breaker so a broker outage
// fails fast instead of stalling every command.
type Kafka struct {
	sender  KafkaSender
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewKafka creates a Kafka publisher.
func NewKafka(sender KafkaSender, cfg breaker.Config, l *slog.Logger) *Kafka {
	return &Kafka{
		sender:  sender,
		breaker: breaker.New[struct{}](cfg, l, nil),
		logger:  l,
	}
}

type owner struct {
	aggregateType string
	idField       string
}

// owners maps child entity types to their owning aggregate and the payload
// field holding the owner's id.
var owners = map[string]owner{
	cart.AggregateTypeItem: {aggregateType: cart.AggregateType, idField: "cart_id"},
}

// TopicFor returns the topic carrying events of aggregateType.
func TopicFor(aggregateType string) string {
	if o, ok := owners[aggregateType]; ok {
		aggregateType = o.aggregateType
	}
	return pkgkafka.Topic(aggregateType, "events")
}

// PartitionKey returns the message key for e: the owning aggregate's id for
// child entities, otherwise e's aggregate id.
func PartitionKey(e domainevent.Event) string {
	if o, ok := owners[e.AggregateType()]; ok {
		if v, ok := e.Payload().Get(o.idField); ok {
			if id, ok := v.(string); ok && id != "" {
				return id
			}
		}
	}
	return e.AggregateID()
}

func (p *Kafka) Publish(ctx context.Context, e domainevent.Event) error {
	env, err := pkgkafka.NewEvent(e.ID(), e.Type(), e.AggregateID(), e.AggregateType(),
		SourceCommerceCore, e.OccurredAt(), e.Payload())
	if err != nil {
		return fmt.Errorf("build envelope for %s: %w", e.Type(), err)
	}
	env.WithSequence(e.Sequence()).
		WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithPartitionKey(PartitionKey(e))

	topic := TopicFor(e.AggregateType())
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.sender.Publish(ctx, topic, env)
	})
	observe("kafka", e.Type(), err)
	if err != nil {
		return fmt.Errorf("publish %s to kafka: %w", e.Type(), err)
	}
	return nil
}

// State reports the breaker state, for health checks.
func (p *Kafka) State() gobreaker.State {
	return p.breaker.State()
}
