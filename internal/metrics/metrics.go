// Package metrics exposes Prometheus collectors for simulation runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stresslab"

// Metrics holds the engine collectors on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	InFlight           prometheus.Gauge
	AdmissionWait      prometheus.Histogram
	PSDRepairs         *prometheus.CounterVec
	OptimizerFallbacks prometheus.Counter
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Simulation runs by method and terminal state.",
		}, []string{"method", "state"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of simulation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"method"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Runs currently holding an admission slot.",
		}),
		AdmissionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_wait_seconds",
			Help:      "Time spent waiting for an admission slot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		PSDRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "psd_repairs_total",
			Help:      "Correlation matrices projected back to PSD, by stage.",
		}, []string{"stage"}),
		OptimizerFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_fallbacks_total",
			Help:      "Optimizer failures replaced by a degraded equal-weight result.",
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.InFlight,
		m.AdmissionWait,
		m.PSDRepairs,
		m.OptimizerFallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(method, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(method, state).Inc()
	m.RunDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Registry returns the registry backing the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
