// Package observability provides monitoring and debugging capabilities for
// the desktop automation runtime through metrics, structured logging, and
// distributed tracing.
//
// # Overview
//
// The package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Metrics
//
// Metrics track workflow step execution, element resolution latency, tree
// extraction cache behavior, and MCP request handling:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... resolve a selector ...
//	metrics.RecordLocatorResolve("role-selector", "hit", time.Since(start).Seconds())
//
//	start = time.Now()
//	// ... execute a workflow step ...
//	metrics.RecordStepExecution("click_element", "success", time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request/run ID correlation from context
//   - Redaction of sensitive data (API keys, tokens, passwords) in step arguments and logs
//   - JSON output for production, text for development
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//	logger.Info(ctx, "resolved locator", "selector", sel.String(), "matches", len(handles))
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry (OTLP over HTTP) to track a workflow
// run across step execution, selector resolution, and platform engine calls:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "deskmcp",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4318",
//	    SamplingRate:   0.1,
//	})
//	defer shutdown(context.Background())
package observability
