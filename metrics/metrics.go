// Package metrics exposes Prometheus counters for the cached data layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels how an accessor call was answered.
type Outcome string

const (
	OutcomeCache   Outcome = "cache"
	OutcomeNetwork Outcome = "network"
	OutcomeStale   Outcome = "stale"
	OutcomeEmpty   Outcome = "empty"
	OutcomeFailed  Outcome = "failed"
)

// Collector holds every metric on its own registry so tests can build as
// many as they like.
type Collector struct {
	registry *prometheus.Registry

	Results       *prometheus.CounterVec
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	StorageErrors *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec
}

// NewCollector registers metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_results_total",
			Help:      "Accessor calls by source and how they were answered.",
		}, []string{"source", "outcome"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Network fetches by source and result.",
		}, []string{"source", "result"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of network fetch plus transform.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_storage_errors_total",
			Help:      "Swallowed persisted-store failures by operation.",
		}, []string{"op"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_breaker_state",
			Help:      "Circuit breaker state per source (0 closed, 1 half-open, 2 open).",
		}, []string{"source"}),
	}
	c.registry.MustRegister(c.Results, c.Fetches, c.FetchDuration, c.StorageErrors, c.BreakerState)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Result records how a call for source was answered.
func (c *Collector) Result(source string, outcome Outcome) {
	if c == nil {
		return
	}
	c.Results.WithLabelValues(source, string(outcome)).Inc()
}

// Fetch records one network fetch attempt.
func (c *Collector) Fetch(source string, took time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Fetches.WithLabelValues(source, result).Inc()
	c.FetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

// Breaker records a breaker state transition.
func (c *Collector) Breaker(source string, state int) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(source).Set(float64(state))
}

// StorageError implements cache.Observer.
func (c *Collector) StorageError(op string) {
	if c == nil {
		return
	}
	c.StorageErrors.WithLabelValues(op).Inc()
}
