package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// StatSource is satisfied by *pgxpool.Pool.
type StatSource interface {
	Stat() *pgxpool.Stat
}

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool statistics as Prometheus metrics under
// the commercecore_db_pool_ prefix.
type PoolStatsCollector struct {
	pool    StatSource
	metrics []poolMetric
}

// NewPoolStatsCollector creates a collector for pool labelled with store
// (e.g. "products").
func NewPoolStatsCollector(pool StatSource, store string) *PoolStatsCollector {
	labels := prometheus.Labels{"store": store}
	gauge := func(name, help string, v func(*pgxpool.Stat) float64) poolMetric {
		return poolMetric{
			desc:  prometheus.NewDesc("commercecore_db_pool_"+name, help, nil, labels),
			kind:  prometheus.GaugeValue,
			value: v,
		}
	}
	counter := func(name, help string, v func(*pgxpool.Stat) float64) poolMetric {
		m := gauge(name, help, v)
		m.kind = prometheus.CounterValue
		return m
	}

	return &PoolStatsCollector{
		pool: pool,
		metrics: []poolMetric{
			gauge("acquired_connections", "Connections currently acquired.",
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			gauge("idle_connections", "Connections currently idle.",
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			gauge("total_connections", "Connections in the pool.",
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			gauge("max_connections", "Maximum pool size.",
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			counter("acquire_total", "Connection acquires.",
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			counter("acquire_duration_seconds_total", "Time spent acquiring connections.",
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			counter("empty_acquire_total", "Acquires that waited for a free connection.",
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			counter("canceled_acquire_total", "Acquires canceled by their context.",
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stat))
	}
}

// RegisterPoolMetrics registers a collector for pool on reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool StatSource, store string) error {
	return reg.Register(NewPoolStatsCollector(pool, store))
}
