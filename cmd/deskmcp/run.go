package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/deskmcp/internal/workflow"
)

// workflowFile is the on-disk JSON shape "deskmcp run" reads: the same
// fields workflows/run accepts over MCP, so a file captured from one
// surface replays unchanged on the other.
type workflowFile struct {
	Steps       []workflow.Step          `json:"steps"`
	Variables   map[string]any           `json:"variables,omitempty"`
	Outputs     []workflow.OutputBinding `json:"outputs,omitempty"`
	StopOnError bool                     `json:"stop_on_error,omitempty"`
}

func buildRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run <workflow.json>",
		Short: "Execute a single workflow file and print its result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowFile(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func runWorkflowFile(cmd *cobra.Command, configPath, path string) error {
	rt, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer shutdownTracer(rt)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf workflowFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return fmt.Errorf("failed to parse workflow file: %w", err)
	}

	entries := make([]workflow.StepOrGroup, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		entries = append(entries, workflow.Entry(step))
	}

	execCfg := workflow.DefaultExecutorConfig()
	execCfg.DefaultStepTimeout = rt.config.Workflow.DefaultStepTimeout
	execCfg.Metrics = rt.metrics
	execCfg.Tracer = rt.tracer
	execCfg.ArtifactSink = rt.artifactSink

	workflow.Bind(rt.registry)
	executor := workflow.NewExecutor(rt.registry, rt.desktop, execCfg)

	result, err := executor.Run(cmd.Context(), workflow.Workflow{
		Steps:       entries,
		Variables:   wf.Variables,
		Outputs:     wf.Outputs,
		StopOnError: wf.StopOnError,
	})
	if err != nil {
		return fmt.Errorf("workflow run failed: %w", err)
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}
