package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	// Seed every metric so it becomes visible to the gatherer. Counters
	// and histograms only appear after first observation.
	RequestsTotal.WithLabelValues("GET", "2xx").Inc()
	RequestDuration.WithLabelValues("GET").Observe(0.1)
	RunsTotal.WithLabelValues("success").Inc()
	RunIterations.Observe(2)
	GatewayRequestsTotal.WithLabelValues("openai-compat", "plan", "success").Inc()
	GatewayLatency.WithLabelValues("openai-compat", "plan").Observe(0.5)
	GatewayTokensTotal.WithLabelValues("openai-compat", "input").Add(10)
	SandboxExecutionsTotal.WithLabelValues("ok").Inc()
	SandboxDuration.Observe(0.05)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"codewright_requests_total":               false,
		"codewright_request_duration_seconds":     false,
		"codewright_streaming_connections_active": false,
		"codewright_runs_total":                   false,
		"codewright_run_iterations":               false,
		"codewright_gateway_requests_total":       false,
		"codewright_gateway_latency_seconds":      false,
		"codewright_gateway_tokens_total":         false,
		"codewright_sandbox_executions_total":     false,
		"codewright_sandbox_duration_seconds":     false,
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, seen := range expected {
		if !seen {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "2xx"))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "2xx"))
	if after != before+1 {
		t.Errorf("requests_total = %v, want %v", after, before+1)
	}
}

func TestMetricsMiddlewareStatusClass(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "4xx"))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "4xx"))
	if after != before+1 {
		t.Errorf("requests_total 4xx = %v, want %v", after, before+1)
	}
}

func TestMetricsMiddlewareStreamingGauge(t *testing.T) {
	// The gauge is incremented for the duration of a run-creation request
	// and decremented on completion.
	var during float64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(StreamingConnections)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if during < 1 {
		t.Errorf("gauge during request = %v, want >= 1", during)
	}
	if after := testutil.ToFloat64(StreamingConnections); after != during-1 {
		t.Errorf("gauge after request = %v, want %v", after, during-1)
	}
}

func TestStatusWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	if sw.Unwrap() != rec {
		t.Error("Unwrap should return the underlying writer")
	}
}
