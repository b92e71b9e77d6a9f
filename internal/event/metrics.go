package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_events_published_total",
			Help: "Total number of domain events delivered to a sink",
		},
		[]string{"sink", "event_type"},
	)

	eventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_events_failed_total",
			Help: "Total number of domain events a sink failed to deliver",
		},
		[]string{"sink", "event_type"},
	)
)

func observe(sink, eventType string, err error) {
	if err != nil {
		eventsFailed.WithLabelValues(sink, eventType).Inc()
		return
	}
	eventsPublished.WithLabelValues(sink, eventType).Inc()
}
