package runner

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meikuraledutech/pipeline/engine"
)

// Metrics holds all Prometheus metrics for pipeline execution.
type Metrics struct {
	// Run metrics
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsInFlight prometheus.Gauge

	// Node metrics
	nodeDispatches      *prometheus.CounterVec
	nodeDispatchLatency *prometheus.HistogramVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics creates a new metrics instance on its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total number of pipeline runs by final status",
			},
			[]string{"status"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		runsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipeline_runs_in_flight",
				Help: "Number of pipeline runs currently executing",
			},
		),

		nodeDispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_node_dispatches_total",
				Help: "Total number of node dispatches by node kind and outcome",
			},
			[]string{"kind", "status"},
		),

		nodeDispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_node_dispatch_duration_seconds",
				Help:    "Node dispatch latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"kind"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.runsInFlight,
		m.nodeDispatches,
		m.nodeDispatchLatency,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// NodeDispatched implements engine.Observer.
func (m *Metrics) NodeDispatched(node *engine.CombinedNode, elapsed time.Duration, err error) {
	kind := node.Kind.String()
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.nodeDispatches.WithLabelValues(kind, status).Inc()
	m.nodeDispatchLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordHTTPRequest records an HTTP request. route is the matched route pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
