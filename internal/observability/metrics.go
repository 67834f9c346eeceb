package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector Pathfinder exports.
//
// All methods are safe on a nil receiver so components can run without
// metrics in tests.
type Metrics struct {
	// RequestCounter counts resolved queries.
	// Labels: path (dispatch path used), degraded (true|false)
	RequestCounter *prometheus.CounterVec

	// RequestDuration measures end-to-end resolution latency.
	// Labels: path
	RequestDuration *prometheus.HistogramVec

	// BackendRequestCounter counts backend completions.
	// Labels: backend, kind, status (success|unavailable|protocol)
	BackendRequestCounter *prometheus.CounterVec

	// BackendRequestDuration measures backend completion latency.
	// Labels: backend
	BackendRequestDuration *prometheus.HistogramVec

	// BackendAvailable is 1 when the backend's last probe succeeded.
	// Labels: backend
	BackendAvailable *prometheus.GaugeVec

	// AgentRuns counts agent loop terminations.
	// Labels: reason
	AgentRuns *prometheus.CounterVec

	// AgentIterations observes iterations used per agent run.
	AgentIterations prometheus.Histogram

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool latency.
	// Labels: tool
	ToolExecutionDuration *prometheus.HistogramVec

	// SearchAttempts counts aggregator attempts.
	// Labels: source, accepted
	SearchAttempts *prometheus.CounterVec

	// Demotions counts fallback chain demotions.
	// Labels: from, to, reason
	Demotions *prometheus.CounterVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, route, status
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP latency.
	// Labels: method, route
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them through promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_requests_total",
			Help: "Total number of resolved queries by dispatch path and degraded flag",
		}, []string{"path", "degraded"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathfinder_request_duration_seconds",
			Help:    "End-to-end query resolution latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"path"}),

		BackendRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_backend_requests_total",
			Help: "Total number of backend completions by backend, kind and status",
		}, []string{"backend", "kind", "status"}),

		BackendRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathfinder_backend_request_duration_seconds",
			Help:    "Backend completion latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend"}),

		BackendAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pathfinder_backend_available",
			Help: "Whether the backend's last availability probe succeeded",
		}, []string{"backend"}),

		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_agent_runs_total",
			Help: "Total number of agent loop runs by terminal reason",
		}, []string{"reason"}),

		AgentIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pathfinder_agent_iterations",
			Help:    "Iterations used per agent run",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		}),

		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_tool_executions_total",
			Help: "Total number of tool executions by tool and status",
		}, []string{"tool", "status"}),

		ToolExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathfinder_tool_execution_duration_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"tool"}),

		SearchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_search_attempts_total",
			Help: "Total number of web search attempts by source and acceptance",
		}, []string{"source", "accepted"}),

		Demotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_demotions_total",
			Help: "Total number of fallback chain demotions",
		}, []string{"from", "to", "reason"}),

		HTTPRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathfinder_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) RecordRequest(path string, degraded bool, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(path, strconv.FormatBool(degraded)).Inc()
	m.RequestDuration.WithLabelValues(path).Observe(d.Seconds())
}

func (m *Metrics) RecordBackendRequest(backend, kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequestCounter.WithLabelValues(backend, kind, status).Inc()
	m.BackendRequestDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *Metrics) SetBackendAvailable(backend string, available bool) {
	if m == nil {
		return
	}
	v := 0.0
	if available {
		v = 1
	}
	m.BackendAvailable.WithLabelValues(backend).Set(v)
}

func (m *Metrics) RecordAgentRun(reason string, iterations int) {
	if m == nil {
		return
	}
	m.AgentRuns.WithLabelValues(reason).Inc()
	m.AgentIterations.Observe(float64(iterations))
}

func (m *Metrics) RecordToolExecution(tool string, isError bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if isError {
		status = "error"
	}
	m.ToolExecutionCounter.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) RecordSearchAttempt(source string, accepted bool) {
	if m == nil {
		return
	}
	m.SearchAttempts.WithLabelValues(source, strconv.FormatBool(accepted)).Inc()
}

func (m *Metrics) RecordDemotion(from, to, reason string) {
	if m == nil {
		return
	}
	m.Demotions.WithLabelValues(from, to, reason).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
