// Package metrics provides the coordinator's Prometheus instrumentation:
// task throughput, tool latency, chat-client request duration, token usage,
// and retry counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the coordinator's collectors.
type Metrics struct {
	// TaskTransitions counts every task state transition.
	// Labels: status (ready|running|completed|blocked|failed)
	TaskTransitions *prometheus.CounterVec

	// ToolDuration measures built-in tool execution latency in seconds.
	// Labels: tool_name, status (success|error)
	ToolDuration *prometheus.HistogramVec

	// ChatRequestDuration measures one full streamed completion's latency.
	// Labels: backend (anthropic|bedrock), model
	ChatRequestDuration *prometheus.HistogramVec

	// ChatRequestRetries counts request-construction retries by reason.
	// Labels: backend, status_code
	ChatRequestRetries *prometheus.CounterVec

	// TokensUsed tracks cumulative token consumption.
	// Labels: backend, model, kind (input|output)
	TokensUsed *prometheus.CounterVec

	// RunningWorkers is a gauge of currently in-flight workers.
	RunningWorkers prometheus.Gauge
}

// New creates and registers all coordinator metrics against reg. Passing
// nil registers against the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TaskTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hive",
			Name:      "task_transitions_total",
			Help:      "Count of task state transitions by resulting status.",
		}, []string{"status"}),

		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hive",
			Name:      "tool_duration_seconds",
			Help:      "Built-in tool execution latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"tool_name", "status"}),

		ChatRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hive",
			Name:      "chat_request_duration_seconds",
			Help:      "Full streamed chat completion latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"backend", "model"}),

		ChatRequestRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hive",
			Name:      "chat_request_retries_total",
			Help:      "Request-construction-layer retries by backend and HTTP status.",
		}, []string{"backend", "status_code"}),

		TokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hive",
			Name:      "tokens_used_total",
			Help:      "Cumulative input/output token usage.",
		}, []string{"backend", "model", "kind"}),

		RunningWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hive",
			Name:      "running_workers",
			Help:      "Currently in-flight workers.",
		}),
	}
}

// ObserveTool records one tool execution's outcome and latency.
func (m *Metrics) ObserveTool(toolName string, isError bool, d time.Duration) {
	status := "success"
	if isError {
		status = "error"
	}
	m.ToolDuration.WithLabelValues(toolName, status).Observe(d.Seconds())
}

// ObserveChatRequest records one completed streamed request.
func (m *Metrics) ObserveChatRequest(backend, model string, d time.Duration, inputTokens, outputTokens int) {
	m.ChatRequestDuration.WithLabelValues(backend, model).Observe(d.Seconds())
	m.TokensUsed.WithLabelValues(backend, model, "input").Add(float64(inputTokens))
	m.TokensUsed.WithLabelValues(backend, model, "output").Add(float64(outputTokens))
}

// ObserveRetry records one request-construction-layer retry.
func (m *Metrics) ObserveRetry(backend, reason string) {
	m.ChatRequestRetries.WithLabelValues(backend, reason).Inc()
}

// ObserveTransition records one task reaching status.
func (m *Metrics) ObserveTransition(status string) {
	m.TaskTransitions.WithLabelValues(status).Inc()
}

// WorkerStarted and WorkerFinished track the in-flight worker gauge around
// a worker's admission and terminal result.
func (m *Metrics) WorkerStarted()  { m.RunningWorkers.Inc() }
func (m *Metrics) WorkerFinished() { m.RunningWorkers.Dec() }
