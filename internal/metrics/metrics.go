package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	SessionsSwept  prometheus.Counter

	// Tool metrics
	ToolExecutionsTotal      *prometheus.CounterVec
	ToolExecutionDuration    *prometheus.HistogramVec
	ToolExecutionErrorsTotal *prometheus.CounterVec

	// Planner metrics
	PlannerCallsTotal     *prometheus.CounterVec
	PlannerFallbacksTotal prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "toolbridge_sessions_active",
			Help: "Number of live sessions in the session table.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolbridge_sessions_total",
			Help: "Total sessions created.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolbridge_sessions_swept_total",
			Help: "Total sessions removed by the idle sweeper.",
		}),
		ToolExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_tool_executions_total",
			Help: "Total tool executions by tool name.",
		}, []string{"tool"}),
		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toolbridge_tool_execution_duration_seconds",
			Help:    "Tool execution duration by tool name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		ToolExecutionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_tool_execution_errors_total",
			Help: "Total tool executions that produced an error result.",
		}, []string{"tool"}),
		PlannerCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_planner_calls_total",
			Help: "Total planner provider calls by provider and status.",
		}, []string{"provider", "status"}),
		PlannerFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolbridge_planner_fallbacks_total",
			Help: "Total turns answered by the rule-based fallback.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_http_requests_total",
			Help: "Total HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.SessionsSwept,
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.ToolExecutionErrorsTotal,
		m.PlannerCallsTotal,
		m.PlannerFallbacksTotal,
		m.HTTPRequestsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
