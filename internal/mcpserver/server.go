// Package mcpserver exposes internal/tools and internal/workflow over the
// Model Context Protocol: JSON-RPC 2.0 requests carried on stdio, streamable
// HTTP, or SSE, behind the concurrency gate and bearer-token auth spec §6
// describes.
package mcpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/deskmcp/internal/config"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/observability"
	"github.com/haasonsaas/deskmcp/internal/tools"
	"github.com/haasonsaas/deskmcp/internal/workflow"
)

// ProtocolVersion is the MCP protocol version this server negotiates during
// initialize.
const ProtocolVersion = "2024-11-05"

// ServerName/ServerVersion identify this server in initialize responses and
// the "/" endpoint's endpoint listing.
const (
	ServerName    = "deskmcp"
	ServerVersion = "0.1.0"
)

// Server wires a tool registry and workflow executor to the MCP transports.
type Server struct {
	config   *config.Config
	registry *tools.Registry
	desktop  *desktop.Desktop
	executor *workflow.Executor
	execCfg  *workflow.ExecutorConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	gate     *gate

	startedAt time.Time
}

// New builds a Server. cfg, registry, and d must be non-nil; logger, metrics,
// tracer, and artifactSink may be nil, in which case the server runs without
// structured logging/telemetry/artifact persistence respectively.
func New(cfg *config.Config, registry *tools.Registry, d *desktop.Desktop, logger *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer, artifactSink tools.ArtifactSink) *Server {
	execCfg := workflow.DefaultExecutorConfig()
	execCfg.DefaultStepTimeout = cfg.Workflow.DefaultStepTimeout
	execCfg.Metrics = metrics
	execCfg.Tracer = tracer
	execCfg.ArtifactSink = artifactSink

	workflow.Bind(registry)

	return &Server{
		config:    cfg,
		registry:  registry,
		desktop:   d,
		executor:  workflow.NewExecutor(registry, d, execCfg),
		execCfg:   execCfg,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		gate:      newGate(cfg.Concurrency.MaxActiveOperations, cfg.Concurrency.GateWaitTimeout, metrics),
		startedAt: time.Now(),
	}
}

// Serve runs the configured transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	switch s.config.Server.Transport {
	case "http", "sse":
		return s.serveHTTP(ctx)
	default:
		return s.serveStdio(ctx)
	}
}

// generateRunID mints a run correlation ID for a workflows/run invocation
// that didn't already have one attached to its context.
func generateRunID() string {
	return uuid.NewString()
}

func (s *Server) logf(ctx context.Context, level string, msg string, args ...any) {
	if s.logger == nil {
		slog.Default().Info(msg, args...)
		return
	}
	switch level {
	case "error":
		s.logger.Error(ctx, msg, args...)
	case "warn":
		s.logger.Warn(ctx, msg, args...)
	case "debug":
		s.logger.Debug(ctx, msg, args...)
	default:
		s.logger.Info(ctx, msg, args...)
	}
}
