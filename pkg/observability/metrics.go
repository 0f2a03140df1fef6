// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the codewright service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// GatewayBuckets defines histogram buckets suited for generation backend
// latencies, ranging from 100ms to 120s.
var GatewayBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// SandboxBuckets covers sandboxed execution wall time, from 10ms up to the
// timeout region.
var SandboxBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewright_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codewright_request_duration_seconds",
			Help:    "Request duration",
			Buckets: GatewayBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE run streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codewright_streaming_connections_active",
			Help: "Active run streams",
		},
	)

	// RunsTotal counts completed runs by terminal outcome.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewright_runs_total",
			Help: "Completed runs",
		},
		[]string{"outcome"},
	)

	// RunIterations records how many generate-execute-validate passes each
	// run consumed before terminating.
	RunIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codewright_run_iterations",
			Help:    "Iterations per run",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// GatewayRequestsTotal counts calls to the generation backend by step
	// and status.
	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewright_gateway_requests_total",
			Help: "Gateway requests",
		},
		[]string{"gateway", "step", "status"},
	)

	// GatewayLatency records generation backend latency in seconds.
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codewright_gateway_latency_seconds",
			Help:    "Gateway latency",
			Buckets: GatewayBuckets,
		},
		[]string{"gateway", "step"},
	)

	// GatewayTokensTotal counts tokens processed by direction (input/output).
	GatewayTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewright_gateway_tokens_total",
			Help: "Token count",
		},
		[]string{"gateway", "direction"},
	)

	// SandboxExecutionsTotal counts sandboxed executions by result
	// (ok, failed, timeout, spawn_error).
	SandboxExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codewright_sandbox_executions_total",
			Help: "Sandbox executions",
		},
		[]string{"result"},
	)

	// SandboxDuration records sandboxed execution wall time in seconds.
	SandboxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codewright_sandbox_duration_seconds",
			Help:    "Sandbox execution duration",
			Buckets: SandboxBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		RunsTotal,
		RunIterations,
		GatewayRequestsTotal,
		GatewayLatency,
		GatewayTokensTotal,
		SandboxExecutionsTotal,
		SandboxDuration,
	)
}
