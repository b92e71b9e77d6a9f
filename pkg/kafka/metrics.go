package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProducerMetrics counts publishes per topic and event type.
type ProducerMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewProducerMetrics registers the producer collectors on reg.
func NewProducerMetrics(reg prometheus.Registerer) *ProducerMetrics {
	f := promauto.With(reg)
	labels := []string{"topic", "event_type"}
	return &ProducerMetrics{
		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commercecore",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Events written to Kafka.",
		}, labels),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commercecore",
			Subsystem: "kafka",
			Name:      "publish_errors_total",
			Help:      "Kafka writes that returned an error.",
		}, labels),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "commercecore",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Latency of Kafka writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

// observe is safe on a nil receiver.
func (m *ProducerMetrics) observe(topic, eventType string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(topic).Observe(took.Seconds())
	if err != nil {
		m.failed.WithLabelValues(topic, eventType).Inc()
		return
	}
	m.published.WithLabelValues(topic, eventType).Inc()
}
