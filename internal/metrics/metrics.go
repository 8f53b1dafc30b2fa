package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Hydration of catalog collections and users
	HydrationTotal    *prometheus.CounterVec
	HydrationDuration *prometheus.HistogramVec
	HydratedItems     *prometheus.CounterVec
	SkippedDocuments  *prometheus.CounterVec

	// Mutations and the remote writes they issue
	MutationTotal       *prometheus.CounterVec
	RemoteWriteTotal    *prometheus.CounterVec
	RemoteWriteDuration *prometheus.HistogramVec
	PendingWrites       prometheus.Gauge

	EventPublishTotal *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide Metrics, creating and registering it
// on first use
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reeldiary_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		HydrationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_hydrations_total",
			Help: "Total number of hydration runs",
		}, []string{"target", "status"}),

		HydrationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reeldiary_hydration_duration_seconds",
			Help:    "Hydration duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),

		HydratedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_hydrated_items_total",
			Help: "Aggregates produced by hydration",
		}, []string{"target"}),

		SkippedDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_skipped_documents_total",
			Help: "Malformed child documents skipped during hydration",
		}, []string{"collection"}),

		MutationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_mutations_total",
			Help: "Total number of diary mutations",
		}, []string{"op", "status"}),

		RemoteWriteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_remote_writes_total",
			Help: "Remote write batches issued by mutations",
		}, []string{"op", "status"}),

		RemoteWriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reeldiary_remote_write_duration_seconds",
			Help:    "Remote write batch duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		PendingWrites: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reeldiary_pending_remote_writes",
			Help: "Remote write batches still in flight",
		}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reeldiary_event_publish_total",
			Help: "Total number of mutation event publish attempts",
		}, []string{"op", "status"}),
	}

	m.HTTPRequestTotal = registerOrGet(m.HTTPRequestTotal)
	m.HTTPRequestDuration = registerOrGet(m.HTTPRequestDuration)
	m.HydrationTotal = registerOrGet(m.HydrationTotal)
	m.HydrationDuration = registerOrGet(m.HydrationDuration)
	m.HydratedItems = registerOrGet(m.HydratedItems)
	m.SkippedDocuments = registerOrGet(m.SkippedDocuments)
	m.MutationTotal = registerOrGet(m.MutationTotal)
	m.RemoteWriteTotal = registerOrGet(m.RemoteWriteTotal)
	m.RemoteWriteDuration = registerOrGet(m.RemoteWriteDuration)
	m.PendingWrites = registerOrGet(m.PendingWrites)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal)

	globalMetrics = m
	return m
}

// registerOrGet registers a collector, returning the existing one if an
// identical collector is already registered
func registerOrGet[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Status returns the label used for an operation outcome
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
