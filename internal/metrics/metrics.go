// Package metrics exposes the catalog's Prometheus collectors.
//
// Collectors are registered on a private registry so several instances can
// coexist in one process (tests). Handler serves that registry together with
// the Go runtime and process collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

// Metrics bundles the catalog collectors. It satisfies catalog.Observer.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	Upserts        *prometheus.CounterVec
	SweepRuns      *prometheus.CounterVec
	SweepEvictions *prometheus.CounterVec
	SweepDuration  prometheus.Histogram
}

// New constructs and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Upserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upserts_total",
				Help:      "Registry writes by kind and result",
			},
			[]string{"kind", "result"},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Cleanup sweeps by result",
			},
			[]string{"result"},
		),
		SweepEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_evictions_total",
				Help:      "Records evicted by the cleanup sweeper",
			},
			[]string{"kind"},
		),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of completed cleanup sweeps in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.Upserts,
		m.SweepRuns,
		m.SweepEvictions,
		m.SweepDuration,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveUpsert records a registry write outcome.
func (m *Metrics) ObserveUpsert(kind, outcome string) {
	m.Upserts.WithLabelValues(kind, outcome).Inc()
}

// ObserveSweep records a sweep run. Duration and evictions are only
// recorded for runs that did work.
func (m *Metrics) ObserveSweep(outcome string, duration time.Duration, evicted map[string]int) {
	m.SweepRuns.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.SweepDuration.Observe(duration.Seconds())
	}
	for kind, n := range evicted {
		m.SweepEvictions.WithLabelValues(kind).Add(float64(n))
	}
}

func statusLabel(status int) string {
	if http.StatusText(status) == "" {
		return "unknown"
	}
	return strconv.Itoa(status)
}
