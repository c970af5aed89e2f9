// Package main provides the CLI entry point for deskmcp, a Model Context
// Protocol server exposing desktop UI automation as MCP tools.
//
// # Basic Usage
//
// Start the server:
//
//	deskmcp serve --config deskmcp.yaml
//
// Run a single workflow file and print its result as JSON:
//
//	deskmcp run workflow.json
//
// Check platform accessibility reachability:
//
//	deskmcp doctor
//
// # Environment Variables
//
//   - MCP_AUTH_TOKEN: bearer token required on the HTTP/SSE transports
//   - MCP_MAX_CONCURRENT: concurrency gate size
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SDK_ENABLED: tracing export
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deskmcp",
		Short: "deskmcp - desktop UI automation over the Model Context Protocol",
		Long: `deskmcp exposes desktop UI automation (element location, clicking,
typing, key chords, screen capture, window/process enumeration) as MCP
tools, reachable over stdio, streamable HTTP, or SSE.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRunCmd(),
		buildDoctorCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "deskmcp %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

const defaultConfigPath = "deskmcp.yaml"
