package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Workflow step execution counts and latencies
//   - Selector/locator resolution performance and cache behavior
//   - UI tree extraction duration and cache hit rate
//   - Platform engine call counts by operation and OS
//   - MCP request handling (tool calls, concurrency gate waits)
type Metrics struct {
	// StepExecutionCounter counts workflow step executions.
	// Labels: tool_name, status (success|error|skipped)
	StepExecutionCounter *prometheus.CounterVec

	// StepExecutionDuration measures step execution time in seconds.
	// Labels: tool_name
	StepExecutionDuration *prometheus.HistogramVec

	// StepRetryCounter counts step retry attempts.
	// Labels: tool_name
	StepRetryCounter *prometheus.CounterVec

	// WorkflowRunCounter counts completed workflow runs by outcome.
	// Labels: outcome (success|partial|failed|cancelled)
	WorkflowRunCounter *prometheus.CounterVec

	// WorkflowRunDuration measures end-to-end workflow execution time.
	WorkflowRunDuration prometheus.Histogram

	// LocatorResolveCounter counts selector resolution attempts.
	// Labels: cache_result (hit|miss), status (success|not_found|ambiguous)
	LocatorResolveCounter *prometheus.CounterVec

	// LocatorResolveDuration measures selector resolution latency in seconds.
	// Labels: cache_result (hit|miss)
	LocatorResolveDuration *prometheus.HistogramVec

	// LocatorCacheSize tracks the current number of cached element handles.
	LocatorCacheSize prometheus.Gauge

	// TreeExtractionDuration measures UI tree extraction latency in seconds.
	// Labels: root_kind (window|application|desktop)
	TreeExtractionDuration *prometheus.HistogramVec

	// TreeExtractionNodeCount tracks the number of nodes visited per extraction.
	TreeExtractionNodeCount prometheus.Histogram

	// TreePropertyBatchCounter counts batched property pre-fetch calls issued
	// to the platform accessibility API, versus the per-node calls it avoided.
	// Labels: kind (batched|avoided)
	TreePropertyBatchCounter *prometheus.CounterVec

	// TreeCacheMissCounter counts every subtree walk that had to fall back to
	// a live children() fetch instead of being served from the walk's
	// already-read property set. Labels: reason (timeout|fetch_error)
	TreeCacheMissCounter *prometheus.CounterVec

	// PlatformCallCounter counts calls into the platform accessibility engine.
	// Labels: operation (e.g. invoke, get_value, find_elements), status (success|error)
	PlatformCallCounter *prometheus.CounterVec

	// PlatformCallDuration measures platform engine call latency in seconds.
	// Labels: operation
	PlatformCallDuration *prometheus.HistogramVec

	// MCPToolCallCounter counts MCP tools/call invocations.
	// Labels: tool_name, status (success|error)
	MCPToolCallCounter *prometheus.CounterVec

	// MCPToolCallDuration measures MCP tool call latency in seconds.
	// Labels: tool_name
	MCPToolCallDuration *prometheus.HistogramVec

	// MCPConcurrencyGateWait measures time spent waiting for a concurrency
	// slot before an operation was allowed to run.
	MCPConcurrencyGateWait prometheus.Histogram

	// MCPActiveOperations is a gauge of in-flight operations under the
	// concurrency gate.
	MCPActiveOperations prometheus.Gauge

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec

	// ScreenshotCounter counts capture_screen invocations.
	// Labels: status (success|error)
	ScreenshotCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		StepExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_step_executions_total",
				Help: "Total number of workflow step executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		StepExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskmcp_step_execution_duration_seconds",
				Help:    "Duration of workflow step executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		StepRetryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_step_retries_total",
				Help: "Total number of step retry attempts by tool name",
			},
			[]string{"tool_name"},
		),

		WorkflowRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_workflow_runs_total",
				Help: "Total number of workflow runs by outcome",
			},
			[]string{"outcome"},
		),

		WorkflowRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskmcp_workflow_run_duration_seconds",
				Help:    "Duration of complete workflow runs in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		LocatorResolveCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_locator_resolve_total",
				Help: "Total number of selector resolution attempts by cache result and status",
			},
			[]string{"cache_result", "status"},
		),

		LocatorResolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskmcp_locator_resolve_duration_seconds",
				Help:    "Duration of selector resolution in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"cache_result"},
		),

		LocatorCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskmcp_locator_cache_size",
				Help: "Current number of cached resolved element handles",
			},
		),

		TreeExtractionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskmcp_tree_extraction_duration_seconds",
				Help:    "Duration of UI tree extraction in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"root_kind"},
		),

		TreeExtractionNodeCount: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskmcp_tree_extraction_nodes",
				Help:    "Number of nodes visited per tree extraction",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
		),

		TreePropertyBatchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_tree_property_calls_total",
				Help: "Batched versus per-node property fetch calls issued during tree extraction",
			},
			[]string{"kind"},
		),

		TreeCacheMissCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_tree_cache_misses_total",
				Help: "Total number of subtree walks that fell back to a live children() fetch, by reason",
			},
			[]string{"reason"},
		),

		PlatformCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_platform_calls_total",
				Help: "Total number of platform accessibility engine calls by operation and status",
			},
			[]string{"operation", "status"},
		),

		PlatformCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskmcp_platform_call_duration_seconds",
				Help:    "Duration of platform accessibility engine calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),

		MCPToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_mcp_tool_calls_total",
				Help: "Total number of MCP tools/call invocations by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		MCPToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskmcp_mcp_tool_call_duration_seconds",
				Help:    "Duration of MCP tool call handling in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		MCPConcurrencyGateWait: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskmcp_mcp_concurrency_gate_wait_seconds",
				Help:    "Time spent waiting for a concurrency gate slot before executing",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		MCPActiveOperations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskmcp_mcp_active_operations",
				Help: "Current number of in-flight operations under the concurrency gate",
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskmcp_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ScreenshotCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskmcp_screenshots_total",
				Help: "Total number of capture_screen invocations by status",
			},
			[]string{"status"},
		),
	}
}

// RecordStepExecution records metrics for a workflow step execution.
func (m *Metrics) RecordStepExecution(toolName, status string, durationSeconds float64) {
	m.StepExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.StepExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordStepRetry records a step retry attempt.
func (m *Metrics) RecordStepRetry(toolName string) {
	m.StepRetryCounter.WithLabelValues(toolName).Inc()
}

// RecordWorkflowRun records the outcome and duration of a completed workflow run.
func (m *Metrics) RecordWorkflowRun(outcome string, durationSeconds float64) {
	m.WorkflowRunCounter.WithLabelValues(outcome).Inc()
	m.WorkflowRunDuration.Observe(durationSeconds)
}

// RecordLocatorResolve records a selector resolution attempt.
func (m *Metrics) RecordLocatorResolve(cacheResult, status string, durationSeconds float64) {
	m.LocatorResolveCounter.WithLabelValues(cacheResult, status).Inc()
	m.LocatorResolveDuration.WithLabelValues(cacheResult).Observe(durationSeconds)
}

// SetLocatorCacheSize sets the current resolved-element cache size.
func (m *Metrics) SetLocatorCacheSize(size int) {
	m.LocatorCacheSize.Set(float64(size))
}

// RecordTreeExtraction records metrics for a completed UI tree extraction.
func (m *Metrics) RecordTreeExtraction(rootKind string, durationSeconds float64, nodeCount int) {
	m.TreeExtractionDuration.WithLabelValues(rootKind).Observe(durationSeconds)
	m.TreeExtractionNodeCount.Observe(float64(nodeCount))
}

// RecordTreePropertyBatch records a batched (or avoided per-node) property fetch.
func (m *Metrics) RecordTreePropertyBatch(kind string, count int) {
	m.TreePropertyBatchCounter.WithLabelValues(kind).Add(float64(count))
}

// RecordTreeCacheMiss records a subtree walk falling back to a live
// children() fetch instead of a cached read, tagged with why.
func (m *Metrics) RecordTreeCacheMiss(reason string) {
	m.TreeCacheMissCounter.WithLabelValues(reason).Inc()
}

// RecordPlatformCall records metrics for a platform accessibility engine call.
func (m *Metrics) RecordPlatformCall(operation, status string, durationSeconds float64) {
	m.PlatformCallCounter.WithLabelValues(operation, status).Inc()
	m.PlatformCallDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordMCPToolCall records metrics for an MCP tools/call invocation.
func (m *Metrics) RecordMCPToolCall(toolName, status string, durationSeconds float64) {
	m.MCPToolCallCounter.WithLabelValues(toolName, status).Inc()
	m.MCPToolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordConcurrencyGateWait records time spent waiting for a concurrency slot.
func (m *Metrics) RecordConcurrencyGateWait(waitSeconds float64) {
	m.MCPConcurrencyGateWait.Observe(waitSeconds)
}

// OperationStarted increments the active operations gauge.
func (m *Metrics) OperationStarted() {
	m.MCPActiveOperations.Inc()
}

// OperationEnded decrements the active operations gauge.
func (m *Metrics) OperationEnded() {
	m.MCPActiveOperations.Dec()
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordScreenshot records a capture_screen invocation outcome.
func (m *Metrics) RecordScreenshot(status string) {
	m.ScreenshotCounter.WithLabelValues(status).Inc()
}
