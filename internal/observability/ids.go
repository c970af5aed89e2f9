package observability

import "context"

// Additional context keys for correlating logs and metrics across a workflow run.
const (
	// RunIDKey is the context key for a workflow run ID.
	RunIDKey ContextKey = "run_id"

	// StepIDKey is the context key for a workflow step ID.
	StepIDKey ContextKey = "step_id"

	// WindowIDKey is the context key for a target window/application handle ID.
	WindowIDKey ContextKey = "window_id"
)

// AddRunID adds a workflow run ID to the context.
func AddRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// AddStepID adds a workflow step ID to the context.
func AddStepID(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, StepIDKey, stepID)
}

// GetStepID retrieves the step ID from the context.
func GetStepID(ctx context.Context) string {
	if id, ok := ctx.Value(StepIDKey).(string); ok {
		return id
	}
	return ""
}

// AddWindowID adds a target window ID to the context.
func AddWindowID(ctx context.Context, windowID string) context.Context {
	return context.WithValue(ctx, WindowIDKey, windowID)
}

// GetWindowID retrieves the window ID from the context.
func GetWindowID(ctx context.Context) string {
	if id, ok := ctx.Value(WindowIDKey).(string); ok {
		return id
	}
	return ""
}
