// Package observability exports shard metrics to Prometheus.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecshard/operation"
	"github.com/hupe1980/vecshard/telemetry"
)

const namespace = "vecshard"

// Collector records shard operations and hardware measurements as
// Prometheus metrics. It implements vecshard.MetricsCollector and
// telemetry.Counter, so one value can be passed to both WithMetrics and
// WithHardwareCounter.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	updates     *prometheus.CounterVec
	searchLimit prometheus.Histogram
	searchHits  prometheus.Histogram
	replayed    *prometheus.CounterVec
	hardware    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of shard operations",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"op", "status"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Updates by operation kind and outcome",
		}, []string{"kind", "status"}),
		searchLimit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_limit",
			Help:      "Requested result count per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		searchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Returned result count per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		replayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wal_replayed_total",
			Help:      "WAL entries replayed during recovery by outcome",
		}, []string{"status"}),
		hardware: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_total",
			Help:      "Hardware measurements reported by segments",
		}, []string{"metric"}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.updates, c.searchLimit, c.searchHits, c.replayed, c.hardware,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNewCollector is like NewCollector but panics on registration errors.
func MustNewCollector(reg prometheus.Registerer) *Collector {
	c, err := NewCollector(reg)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordUpdate implements vecshard.MetricsCollector.
func (c *Collector) RecordUpdate(kind operation.Kind, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues("update", s).Observe(d.Seconds())
	c.updates.WithLabelValues(kind.String(), s).Inc()
}

// RecordSearch implements vecshard.MetricsCollector.
func (c *Collector) RecordSearch(limit, results int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("search", status(err)).Observe(d.Seconds())
	c.searchLimit.Observe(float64(limit))
	if err == nil {
		c.searchHits.Observe(float64(results))
	}
}

// RecordRecovery implements vecshard.MetricsCollector.
func (c *Collector) RecordRecovery(replayed, failed int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("recover", status(err)).Observe(d.Seconds())
	c.replayed.WithLabelValues("applied").Add(float64(replayed - failed))
	c.replayed.WithLabelValues("failed").Add(float64(failed))
}

// Add implements telemetry.Counter.
func (c *Collector) Add(m telemetry.Metric, n uint64) {
	c.hardware.WithLabelValues(m.String()).Add(float64(n))
}
