// Package metrics holds the Prometheus collectors for the service.
//
// A dedicated registry (instead of prometheus.DefaultRegisterer) keeps tests
// isolated: each test builds its own Metrics and can create as many as it
// likes without "duplicate metrics collector registration" panics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codeask"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	Registry *prometheus.Registry

	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	LocatorResults    *prometheus.CounterVec
	AskResults        *prometheus.CounterVec
	AskDuration       prometheus.Histogram
	RequestsInFlight  prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Code executions by status (success, failure, error).",
			},
			[]string{"status"},
		),

		ExecutionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Wall time of code executions in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		LocatorResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "locator_results_total",
				Help:      "Error line attributions by source (model, fallback, default).",
			},
			[]string{"source"},
		),

		AskResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ask_results_total",
				Help:      "Timestamp lookups by outcome (found, or the failing stage).",
			},
			[]string{"outcome"},
		),

		AskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ask_duration_seconds",
				Help:      "Wall time of timestamp lookups in seconds.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
			},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),
	}

	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.LocatorResults,
		m.AskResults,
		m.AskDuration,
		m.RequestsInFlight,
	)

	return m
}

// RecordExecution records one finished execution.
func (m *Metrics) RecordExecution(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	m.ExecutionDuration.Observe(d.Seconds())
}

// RecordLocator records where an error attribution came from.
func (m *Metrics) RecordLocator(source string) {
	if m == nil {
		return
	}
	m.LocatorResults.WithLabelValues(source).Inc()
}

// RecordAsk records the outcome of one timestamp lookup.
func (m *Metrics) RecordAsk(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AskResults.WithLabelValues(outcome).Inc()
	m.AskDuration.Observe(d.Seconds())
}

// RegisterPoolGauge exposes the number of idle sandbox containers. idle is
// sampled on every scrape.
func (m *Metrics) RegisterPoolGauge(idle func() int) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "idle_containers",
			Help:      "Pre-warmed sandbox containers waiting in the pool.",
		},
		func() float64 { return float64(idle()) },
	))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// InFlight is HTTP middleware tracking concurrently served requests.
func (m *Metrics) InFlight(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.RequestsInFlight, next)
}
