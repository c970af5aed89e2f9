package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/deskmcp/internal/mcpserver"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server, listening over the transport named in the
configuration file's server.transport (stdio, http, or sse).

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start over stdio (the default)
  deskmcp serve --config deskmcp.yaml

  # Start an HTTP/SSE listener
  deskmcp serve --config deskmcp.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	rt, err := loadRuntime(configPath)
	if err != nil {
		return err
	}

	server := mcpserver.New(rt.config, rt.registry, rt.desktop, rt.logger, rt.metrics, rt.tracer, rt.artifactSink)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("deskmcp server starting",
		"version", version,
		"transport", rt.config.Server.Transport,
		"config", configPath,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		shutdownTracer(rt)
		if err != nil && err != context.Canceled {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	shutdownTracer(rt)

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("server shutdown: %w", err)
		}
	case <-shutdownCtx.Done():
		slog.Warn("server did not stop within shutdown timeout")
	}

	slog.Info("deskmcp server stopped")
	return nil
}

func shutdownTracer(rt *loadedRuntime) {
	if rt.shutdownTracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.shutdownTracer(ctx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err.Error())
	}
}
