package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_analyses_total",
			Help: "Total number of company analyses",
		},
		[]string{"mode", "status"}, // status: ok|partial|error
	)

	StageExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_stage_executions_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "status", "kind"}, // status: ok|error
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketresearch_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_agent_calls_total",
			Help: "Total number of agent calls",
		},
		[]string{"agent", "model", "status"}, // status: success|error|iteration_limit
	)

	AgentCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_agent_cost_usd",
			Help: "Total AI cost in USD",
		},
		[]string{"agent", "model"},
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketresearch_agent_latency_seconds",
			Help:    "Agent execution latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent", "model"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_agent_tokens_total",
			Help: "Total tokens used by agents",
		},
		[]string{"agent", "model", "type"}, // type: input|output
	)

	AgentIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketresearch_agent_iterations",
			Help:    "Model rounds per agent call",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"agent"},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error|malformed
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketresearch_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketresearch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Event metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketresearch_events_published_total",
			Help: "Total events handed to the publisher",
		},
		[]string{"topic", "status"}, // status: success|error
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			StageExecutions,
			StageDuration,
			AgentCalls,
			AgentCost,
			AgentLatency,
			AgentTokens,
			AgentIterations,
			ToolExecutions,
			ToolLatency,
			HTTPRequests,
			HTTPDuration,
			EventsPublished,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis records one coordinator run
func RecordAnalysis(mode, status string) {
	AnalysesTotal.WithLabelValues(mode, status).Inc()
}

// RecordStage records the outcome of one pipeline stage
func RecordStage(stage, status, kind string, duration time.Duration) {
	StageExecutions.WithLabelValues(stage, status, kind).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAgentCall records an agent invocation
func RecordAgentCall(agent, model, status string, latency time.Duration, iterations int) {
	AgentCalls.WithLabelValues(agent, model, status).Inc()
	AgentLatency.WithLabelValues(agent, model).Observe(latency.Seconds())
	if iterations > 0 {
		AgentIterations.WithLabelValues(agent).Observe(float64(iterations))
	}
}

// RecordAgentUsage records tokens and cost of one model round
func RecordAgentUsage(agent, model string, inputTokens, outputTokens int, cost float64) {
	if inputTokens > 0 {
		AgentTokens.WithLabelValues(agent, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		AgentTokens.WithLabelValues(agent, model, "output").Add(float64(outputTokens))
	}
	if cost > 0 {
		AgentCost.WithLabelValues(agent, model).Add(cost)
	}
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool, status string, latency time.Duration) {
	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEventPublished records an event publish attempt
func RecordEventPublished(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(topic, status).Inc()
}
