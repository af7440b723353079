// Package observability provides Prometheus metrics and the ops HTTP server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	// Indexer metrics
	IndexerCycles    *prometheus.CounterVec
	EventsIndexed    *prometheus.CounterVec
	LastIndexedBlock prometheus.Gauge
	IndexerDuration  prometheus.Histogram
	UsernameLookups  *prometheus.CounterVec
	MarketLookups    *prometheus.CounterVec

	// Resolver metrics
	ResolverCycles    *prometheus.CounterVec
	EscrowsChecked    prometheus.Counter
	Resolutions       *prometheus.CounterVec
	SubmissionLatency prometheus.Histogram
	ResolverDuration  prometheus.Histogram
}

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "escrow_oracle"

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		IndexerCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "cycles_total",
			Help:      "Indexer cycles by result",
		}, []string{"result"}),
		EventsIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_indexed_total",
			Help:      "New lifecycle events merged into the store by variant",
		}, []string{"variant"}),
		LastIndexedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "last_indexed_block",
			Help:      "Highest block fully processed by the indexer",
		}),
		IndexerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of indexer cycles",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		UsernameLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "username_lookups_total",
			Help:      "Username lookups by result",
		}, []string{"result"}),
		MarketLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "market_question_lookups_total",
			Help:      "Market question lookups by result",
		}, []string{"result"}),

		ResolverCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cycles_total",
			Help:      "Resolver cycles by result",
		}, []string{"result"}),
		EscrowsChecked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "escrows_checked_total",
			Help:      "Active escrows evaluated by the resolver",
		}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Resolution attempts by result",
		}, []string{"result"}),
		SubmissionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "submission_seconds",
			Help:      "Time from submission to confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ResolverDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of resolver cycles",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CycleResult converts an error to a result label.
func CycleResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
