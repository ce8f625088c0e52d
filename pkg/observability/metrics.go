package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the gateway and the storage
// engines. It owns a private registry so tests can build collectors freely
// without duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Body store metrics
	BodyStoreBytes  prometheus.Gauge
	BodyStoreSpills prometheus.Counter

	// Engine metrics
	BucketsActive prometheus.Gauge
	TablesActive  prometheus.Gauge
}

// NewCollector creates a metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "operation", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	bodyStoreBytes := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bodystore_bytes",
			Help:      "Bytes currently held by the object body store",
		},
	)

	bodyStoreSpills := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bodystore_spills_total",
			Help:      "Total number of bodies spilled to disk",
		},
	)

	bucketsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "s3_buckets",
			Help:      "Number of buckets currently held",
		},
	)

	tablesActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dynamodb_tables",
			Help:      "Number of tables currently held",
		},
	)

	registry.MustRegister(httpRequests, httpDuration, bodyStoreBytes, bodyStoreSpills, bucketsActive, tablesActive)

	return &Collector{
		registry:        registry,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
		BodyStoreBytes:  bodyStoreBytes,
		BodyStoreSpills: bodyStoreSpills,
		BucketsActive:   bucketsActive,
		TablesActive:    tablesActive,
	}
}

// ObserveRequest records a completed request for a service operation.
func (c *Collector) ObserveRequest(service, operation, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(service, operation, status).Inc()
	c.HTTPDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// Handler exposes the collector's registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
