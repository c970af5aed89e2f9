package workflow

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/tools"
)

// sequenceRegistry is the tool.Registry the execute_sequence tool runs its
// nested steps against. Set once by Bind.
var sequenceRegistry *tools.Registry

// Bind wires the execute_sequence tool to this package's Executor, closing
// the import cycle tools.RegisterSequenceExecutor exists for: internal/tools
// cannot import internal/workflow directly, since internal/workflow already
// imports internal/tools to invoke a step's tool.
func Bind(registry *tools.Registry) {
	sequenceRegistry = registry
	tools.RegisterSequenceExecutor(runSequence)
}

// runSequence decodes a nested step list as sent by the execute_sequence
// tool's arguments, runs it as its own sub-Workflow sharing the caller's
// variables, and returns the sub-workflow's final variable table merged with
// its outputs so a caller can read results the same way it reads any other
// tool's return value.
func runSequence(ctx context.Context, d *desktop.Desktop, rawSteps []map[string]any, vars map[string]any) (any, error) {
	if sequenceRegistry == nil {
		return nil, deskerr.Unsupported("execute_sequence has no bound tool registry")
	}

	raw, err := json.Marshal(rawSteps)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindInvalidArgument, err, "encoding nested steps failed")
	}
	var steps []Step
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, deskerr.Wrap(deskerr.KindInvalidArgument, err, "decoding nested steps failed")
	}

	entries := make([]StepOrGroup, 0, len(steps))
	for _, s := range steps {
		entries = append(entries, Entry(s))
	}

	sub := Workflow{Steps: entries, Variables: vars}
	executor := NewExecutor(sequenceRegistry, d, nil)
	result, err := executor.Run(ctx, sub)
	if err != nil {
		return nil, err
	}
	if result.Status == StatusFailed || result.Status == StatusCancelled {
		return result, deskerr.New(deskerr.KindToolFailed, "nested sequence ended with status %q", result.Status)
	}
	return result, nil
}
