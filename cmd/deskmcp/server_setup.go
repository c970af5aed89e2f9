package main

import (
	"context"
	"fmt"

	"github.com/haasonsaas/deskmcp/internal/artifacts"
	"github.com/haasonsaas/deskmcp/internal/config"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/observability"
	"github.com/haasonsaas/deskmcp/internal/platform"
	"github.com/haasonsaas/deskmcp/internal/tools"
)

// loadedRuntime bundles everything buildServeCmd/buildRunCmd/buildDoctorCmd
// need to construct an mcpserver.Server or drive the desktop facade
// directly, so each subcommand's handler stays a thin wrapper around this
// one assembly sequence.
type loadedRuntime struct {
	config       *config.Config
	registry     *tools.Registry
	desktop      *desktop.Desktop
	logger       *observability.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	artifactSink tools.ArtifactSink

	// shutdownTracer flushes and stops the tracer's exporter. No-op if
	// tracing was never enabled.
	shutdownTracer func(context.Context) error
}

func loadRuntime(configPath string) (*loadedRuntime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := platform.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize platform engine: %w", err)
	}

	d := desktop.New(engine, desktop.Options{HighlightOverlay: cfg.Platform.HighlightOverlay})

	registry, err := tools.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	var tracer *observability.Tracer
	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Observability.Tracing.Enabled {
		t, shutdown := observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			ServiceVersion: cfg.Observability.Tracing.ServiceVersion,
			Environment:    cfg.Observability.Tracing.Environment,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SamplingRate,
			Insecure:       cfg.Observability.Tracing.Insecure,
		})
		tracer = t
		if shutdown != nil {
			shutdownTracer = shutdown
		}
	}

	artifacts.SetDefaultTTLs(cfg.Artifacts.TTLs)
	artifactStore, err := artifacts.NewLocalStore(cfg.Artifacts.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	artifactRepo := artifacts.NewMemoryRepository(artifactStore, nil)

	return &loadedRuntime{
		config:         cfg,
		registry:       registry,
		desktop:        d,
		logger:         logger,
		metrics:        metrics,
		tracer:         tracer,
		artifactSink:   artifacts.NewRepositorySink(artifactRepo),
		shutdownTracer: shutdownTracer,
	}, nil
}
