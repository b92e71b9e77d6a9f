package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// KafkaHeaderCarrier adapts message headers to an OpenTelemetry TextMapCarrier.
type KafkaHeaderCarrier struct {
	headers *[]kafka.Header
}

// NewHeaderCarrier wraps headers for trace context propagation.
func NewHeaderCarrier(headers *[]kafka.Header) *KafkaHeaderCarrier {
	return &KafkaHeaderCarrier{headers: headers}
}

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// injectTraceContext writes the span context of ctx into msg headers.
func injectTraceContext(ctx context.Context, msg *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&msg.Headers))
}
