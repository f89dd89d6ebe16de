// Package metrics exposes the gateway's counters and gauges in the
// Prometheus text exposition format
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway collectors. Construct one per process and inject
// it; no package-level registry
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal prometheus.Counter
	Blocked       *prometheus.CounterVec // stage = primary | secondary
	Passed        prometheus.Counter
	Unavailable   prometheus.Counter
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	Duration      prometheus.Histogram
	BreakerState  *prometheus.GaugeVec // dependency = secondary | generator
}

// New builds and registers all collectors. cacheLen feeds the occupancy gauge
func New(cacheLen func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_requests_total",
			Help: "Total number of screening requests",
		}),
		Blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeep_requests_blocked_total",
			Help: "Requests blocked, by pipeline stage",
		}, []string{"stage"}),
		Passed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_requests_passed_total",
			Help: "Requests passed through to the generation service",
		}),
		Unavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_requests_unavailable_total",
			Help: "Requests that ended in a degraded unavailable response",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_cache_hits_total",
			Help: "Score cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatekeep_cache_misses_total",
			Help: "Score cache misses",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gatekeep_request_duration_seconds",
			Help:    "End-to-end screening request duration",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gatekeep_breaker_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open)",
		}, []string{"dependency"}),
	}

	reg.MustRegister(
		m.RequestsTotal, m.Blocked, m.Passed, m.Unavailable,
		m.CacheHits, m.CacheMisses, m.Duration, m.BreakerState,
	)

	if cacheLen != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gatekeep_cache_size",
			Help: "Current score cache occupancy",
		}, cacheLen))
	}

	return m
}

// Handler serves the pull-based text exposition endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
