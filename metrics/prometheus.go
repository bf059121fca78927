// Package metrics exports indexdb operational metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/indexdb"
)

var _ indexdb.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements indexdb.MetricsCollector.
type PrometheusCollector struct {
	opLatency  *prometheus.HistogramVec
	mergedRows prometheus.Counter
	written    prometheus.Counter
	opens      *prometheus.CounterVec
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// Metric names are prefixed with namespace, e.g. "indexdb".
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of finalize, merge, write and open operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		mergedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_rows_total",
			Help:      "Total rows copied by merges",
		}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Total bytes of indexes and archives written",
		}),
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opens_total",
			Help:      "Total indexes, archives and entries opened",
		}, []string{"kind", "status"}),
	}

	for _, col := range []prometheus.Collector{c.opLatency, c.mergedRows, c.written, c.opens} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordFinalize implements indexdb.MetricsCollector.
func (c *PrometheusCollector) RecordFinalize(_, _ int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("finalize", status(err)).Observe(d.Seconds())
}

// RecordMerge implements indexdb.MetricsCollector.
func (c *PrometheusCollector) RecordMerge(rows int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("merge", status(err)).Observe(d.Seconds())
	if err == nil {
		c.mergedRows.Add(float64(rows))
	}
}

// RecordWrite implements indexdb.MetricsCollector.
func (c *PrometheusCollector) RecordWrite(bytes int64, d time.Duration, err error) {
	c.opLatency.WithLabelValues("write", status(err)).Observe(d.Seconds())
	if err == nil {
		c.written.Add(float64(bytes))
	}
}

// RecordOpen implements indexdb.MetricsCollector.
func (c *PrometheusCollector) RecordOpen(kind string, d time.Duration, err error) {
	c.opLatency.WithLabelValues("open", status(err)).Observe(d.Seconds())
	c.opens.WithLabelValues(kind, status(err)).Inc()
}
