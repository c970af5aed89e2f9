package workflow

import (
	"context"
	"time"

	"github.com/haasonsaas/deskmcp/internal/backoff"
	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/ipc"
	"github.com/haasonsaas/deskmcp/internal/observability"
	"github.com/haasonsaas/deskmcp/internal/tools"
)

// ExecutorConfig configures default retry and timeout behavior applied when
// a step does not override them.
type ExecutorConfig struct {
	// RetryPolicy is the backoff policy applied between retry attempts.
	// Default: backoff.WorkflowStepPolicy()
	RetryPolicy backoff.BackoffPolicy

	// DefaultStepTimeout bounds a step invocation that sets no TimeoutMS.
	// Default: 30s
	DefaultStepTimeout time.Duration

	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Events, when set, receives one EventRecord per step completion and one
	// on overall workflow completion, labelled with the run ID read off the
	// context (observability.GetRunID). A nil Events disables publishing
	// entirely rather than requiring a caller to stand up a channel it has
	// no reader for.
	Events *ipc.Channel

	// ArtifactSink, when set, is attached to the context passed to every
	// step invocation so tools that produce a byproduct (capture_screen)
	// can persist it. A nil sink means those tools fall back to returning
	// their payload inline.
	ArtifactSink tools.ArtifactSink
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		RetryPolicy:        backoff.WorkflowStepPolicy(),
		DefaultStepTimeout: 30 * time.Second,
	}
}

func sanitizeExecutorConfig(cfg *ExecutorConfig) *ExecutorConfig {
	if cfg == nil {
		return DefaultExecutorConfig()
	}
	out := *cfg
	defaults := DefaultExecutorConfig()
	if out.RetryPolicy == (backoff.BackoffPolicy{}) {
		out.RetryPolicy = defaults.RetryPolicy
	}
	if out.DefaultStepTimeout <= 0 {
		out.DefaultStepTimeout = defaults.DefaultStepTimeout
	}
	return &out
}

// Executor runs a Workflow to completion against a single Desktop and tool
// Registry.
//
// Steps execute strictly sequentially:
//
//	Gate -> Substitute -> Invoke -> Retry -> Fallback -> Parse -> Record
//
// A Group inlines its Steps into the same sequence; a failure inside a
// skippable Group skips the remainder of that Group without aborting the
// workflow, while a failure at the top level (or inside a non-skippable
// Group) aborts it unless the step sets ContinueOnError or a FallbackID.
type Executor struct {
	registry *tools.Registry
	desktop  *desktop.Desktop
	config   *ExecutorConfig
}

// NewExecutor builds an Executor. A nil config uses DefaultExecutorConfig.
func NewExecutor(registry *tools.Registry, d *desktop.Desktop, config *ExecutorConfig) *Executor {
	return &Executor{registry: registry, desktop: d, config: sanitizeExecutorConfig(config)}
}

// flatStep is one Step placed in execution order, annotated with the Group
// (if any) it came from so the executor can implement group-skip semantics
// and group-level gating without re-walking the nested Workflow structure.
type flatStep struct {
	step       Step
	groupIndex int // -1 for a top-level step
}

type groupSpan struct {
	group           Group
	start, end      int // half-open range into the flattened step slice
	gated, gateOpen bool
}

func flatten(steps []StepOrGroup) ([]flatStep, []groupSpan) {
	var flat []flatStep
	var groups []groupSpan
	for _, entry := range steps {
		switch {
		case entry.Step != nil:
			flat = append(flat, flatStep{step: *entry.Step, groupIndex: -1})
		case entry.Group != nil:
			start := len(flat)
			for _, s := range entry.Group.Steps {
				flat = append(flat, flatStep{step: s, groupIndex: len(groups)})
			}
			groups = append(groups, groupSpan{group: *entry.Group, start: start, end: len(flat)})
		}
	}
	return flat, groups
}

// Run executes wf to completion or until ctx is cancelled.
func (x *Executor) Run(ctx context.Context, wf Workflow) (WorkflowResult, error) {
	if x.config.ArtifactSink != nil {
		ctx = tools.WithArtifactSink(ctx, x.config.ArtifactSink)
	}
	if x.config.Metrics != nil {
		ctx = tools.WithCacheMissRecorder(ctx, x.config.Metrics)
	}

	start := time.Now()
	flat, groups := flatten(wf.Steps)

	vars := make(map[string]any, len(wf.Variables))
	for k, v := range wf.Variables {
		vars[k] = v
	}
	resultsByID := make(map[string]StepResult)
	idToIndex := make(map[string]int, len(flat))
	for i, fs := range flat {
		if fs.step.ID != "" {
			idToIndex[fs.step.ID] = i
		}
	}

	var stepResults []StepResult
	enteredFallbacks := make(map[string]bool)
	status := StatusSuccess

	i := 0
	for i < len(flat) {
		if err := ctx.Err(); err != nil {
			status = StatusCancelled
			break
		}

		fs := flat[i]

		if fs.groupIndex >= 0 {
			span := &groups[fs.groupIndex]
			if !span.gated {
				span.gated = true
				evalCtx, err := evalContext(vars, resultsByID)
				open := true
				if err == nil {
					open, err = evaluateIf(span.group.If, evalCtx)
				}
				span.gateOpen = open
				if err != nil || !open {
					for j := span.start; j < span.end; j++ {
						stepResults = append(stepResults, StepResult{
							StepID:   flat[j].step.ID,
							ToolName: flat[j].step.ToolName,
							Status:   StatusSkipped,
						})
					}
					i = span.end
					continue
				}
			}
		}

		x.publishStepEvent(ctx, ipc.EventStepStarted, fs.step.ID, fs.step.ToolName, nil)
		result, outcome := x.runStep(ctx, fs.step, vars, resultsByID, idToIndex, enteredFallbacks)
		stepResults = append(stepResults, result)
		if result.StepID != "" {
			resultsByID[result.StepID] = result
		}
		if result.Status == StatusFailed {
			x.publishStepEvent(ctx, ipc.EventStepFailed, result.StepID, result.ToolName, result)
		} else if result.Status != StatusSkipped {
			x.publishStepEvent(ctx, ipc.EventStepCompleted, result.StepID, result.ToolName, result)
		}

		if fs.step.DelayMS > 0 && result.Status != StatusSkipped {
			if err := backoff.SleepWithContext(ctx, time.Duration(fs.step.DelayMS)*time.Millisecond); err != nil {
				status = StatusCancelled
				break
			}
		}

		switch outcome.kind {
		case outcomeContinue:
			i++
		case outcomeJump:
			i = outcome.target
		case outcomeSkipGroupRest:
			i = groups[fs.groupIndex].end
		case outcomeAbort:
			status = StatusFailed
			i = len(flat)
		case outcomeCancel:
			status = StatusCancelled
			i = len(flat)
		}
	}

	outputs := make(map[string]any, len(wf.Outputs))
	for _, binding := range wf.Outputs {
		if value, ok := resolvePath(map[string]any{"vars": vars}, "vars."+binding.Path); ok {
			outputs[binding.Name] = value
		}
	}

	if x.config.Metrics != nil {
		x.config.Metrics.RecordWorkflowRun(string(status), time.Since(start).Seconds())
	}
	x.publishStatusEvent(ctx, status)

	return WorkflowResult{
		Status:          status,
		Steps:           stepResults,
		VariablesAfter:  vars,
		Outputs:         outputs,
		TotalDurationMS: time.Since(start).Milliseconds(),
	}, nil
}

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeJump
	outcomeSkipGroupRest
	outcomeAbort
	outcomeCancel
)

type stepOutcome struct {
	kind   outcomeKind
	target int
}

// runStep executes Gate -> Substitute -> Invoke -> Retry -> Fallback -> Parse
// for one step and returns its recorded result plus how the caller's cursor
// should move next.
func (x *Executor) runStep(
	ctx context.Context,
	step Step,
	vars map[string]any,
	resultsByID map[string]StepResult,
	idToIndex map[string]int,
	enteredFallbacks map[string]bool,
) (StepResult, stepOutcome) {
	started := time.Now()
	result := StepResult{StepID: step.ID, ToolName: step.ToolName, StartedAt: started}

	evalCtx, err := evalContext(vars, resultsByID)
	if err != nil {
		result.Status = StatusFailed
		result.Error = &ErrorInfo{Kind: string(deskerr.KindInvalidArgument), Message: err.Error()}
		result.DurationMS = time.Since(started).Milliseconds()
		return result, x.failureOutcome(step, enteredFallbacks, idToIndex)
	}

	gateOpen, err := evaluateIf(step.If, evalCtx)
	if err != nil || !gateOpen {
		result.Status = StatusSkipped
		result.DurationMS = time.Since(started).Milliseconds()
		if err != nil {
			result.Error = &ErrorInfo{Kind: string(deskerr.KindOf(err)), Message: err.Error()}
		}
		return result, stepOutcome{kind: outcomeContinue}
	}

	args, ok, err := substituteArguments(step.Arguments, evalCtx, step.Skippable)
	if err != nil {
		result.Status = StatusFailed
		result.Error = &ErrorInfo{Kind: string(deskerr.KindOf(err)), Message: err.Error()}
		result.DurationMS = time.Since(started).Milliseconds()
		return result, x.failureOutcome(step, enteredFallbacks, idToIndex)
	}
	if !ok {
		result.Status = StatusSkipped
		result.DurationMS = time.Since(started).Milliseconds()
		return result, stepOutcome{kind: outcomeContinue}
	}

	value, retriesUsed, invokeErr := x.invokeWithRetry(ctx, step, args)
	result.RetriesUsed = retriesUsed

	if invokeErr == nil {
		result.Status = StatusSuccess
		result.Value = value
		if step.ToolName == "get_window_tree" {
			result.UITree = value
		}
		if step.Parser != nil {
			parsed, parseErr := tools.Parse(stepOutputs(resultsByID, step.ID, value), step.ID, *step.Parser)
			if parseErr != nil {
				result.Status = StatusFailed
				result.Error = &ErrorInfo{Kind: string(deskerr.KindOf(parseErr)), Message: parseErr.Error()}
				result.DurationMS = time.Since(started).Milliseconds()
				return result, x.failureOutcome(step, enteredFallbacks, idToIndex)
			}
			result.Parsed = parsed
			if step.OutputBinding != "" {
				vars[step.OutputBinding] = parsed
			}
		} else if step.OutputBinding != "" {
			vars[step.OutputBinding] = value
		}
		result.DurationMS = time.Since(started).Milliseconds()
		if x.config.Metrics != nil {
			x.config.Metrics.RecordStepExecution(step.ToolName, "success", time.Since(started).Seconds())
		}
		return result, stepOutcome{kind: outcomeContinue}
	}

	if ctx.Err() != nil {
		result.Status = StatusCancelled
		result.Error = &ErrorInfo{Kind: string(deskerr.KindCancelled), Message: invokeErr.Error()}
		result.DurationMS = time.Since(started).Milliseconds()
		return result, stepOutcome{kind: outcomeCancel}
	}

	result.Status = StatusFailed
	result.Error = &ErrorInfo{Kind: string(deskerr.KindOf(invokeErr)), Message: invokeErr.Error()}
	result.DurationMS = time.Since(started).Milliseconds()
	if x.config.Metrics != nil {
		x.config.Metrics.RecordStepExecution(step.ToolName, "error", time.Since(started).Seconds())
	}
	return result, x.failureOutcome(step, enteredFallbacks, idToIndex)
}

// stepOutputs builds the outputs map internal/tools.Parse expects: every
// prior step's recorded value keyed by step id, plus this step's own fresh
// value (not yet present in resultsByID when Parse runs).
func stepOutputs(resultsByID map[string]StepResult, selfID string, selfValue any) map[string]any {
	outputs := make(map[string]any, len(resultsByID)+1)
	for id, r := range resultsByID {
		outputs[id] = r.Value
	}
	if selfID != "" {
		outputs[selfID] = selfValue
	}
	return outputs
}

// failureOutcome decides whether a just-failed step jumps to its fallback,
// continues past itself, or aborts the workflow.
func (x *Executor) failureOutcome(step Step, enteredFallbacks map[string]bool, idToIndex map[string]int) stepOutcome {
	if step.FallbackID != "" {
		if enteredFallbacks[step.FallbackID] {
			return stepOutcome{kind: outcomeAbort}
		}
		target, ok := idToIndex[step.FallbackID]
		if !ok {
			return stepOutcome{kind: outcomeAbort}
		}
		enteredFallbacks[step.FallbackID] = true
		return stepOutcome{kind: outcomeJump, target: target}
	}
	if step.ContinueOnError {
		return stepOutcome{kind: outcomeContinue}
	}
	return stepOutcome{kind: outcomeAbort}
}

// invokeWithRetry runs step's tool, retrying up to step.Retries additional
// times on a retryable error kind, with exponential backoff between
// attempts. Returns the number of retries actually consumed.
func (x *Executor) invokeWithRetry(ctx context.Context, step Step, args map[string]any) (any, int, error) {
	timeout := x.config.DefaultStepTimeout
	if step.TimeoutMS > 0 {
		timeout = time.Duration(step.TimeoutMS) * time.Millisecond
	}

	var lastErr error
	var value any
	maxAttempts := step.Retries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		value, lastErr = x.registry.Invoke(attemptCtx, x.desktop, step.ToolName, args)
		cancel()

		if lastErr == nil {
			return value, attempt - 1, nil
		}
		if !deskerr.IsRetryable(lastErr) {
			return nil, attempt - 1, lastErr
		}
		if attempt == maxAttempts {
			return nil, attempt - 1, lastErr
		}
		if x.config.Metrics != nil {
			x.config.Metrics.RecordStepRetry(step.ToolName)
		}
		if err := backoff.SleepWithBackoff(ctx, x.config.RetryPolicy, attempt); err != nil {
			return nil, attempt - 1, err
		}
	}
	return nil, maxAttempts - 1, lastErr
}

// publishStepEvent writes one step-level telemetry record to the
// configured Events channel, if any. data is typically the step's own
// StepResult; nil for step_started, which has nothing to report yet.
func (x *Executor) publishStepEvent(ctx context.Context, eventType ipc.EventType, stepID, toolName string, data any) {
	if x.config.Events == nil {
		return
	}
	x.config.Events.Publish(ipc.NewEventRecord(observability.GetRunID(ctx), eventType, map[string]any{
		"step_id":   stepID,
		"tool_name": toolName,
		"result":    data,
	}))
}

// publishStatusEvent writes the workflow's final status as one event.
func (x *Executor) publishStatusEvent(ctx context.Context, status StepStatus) {
	if x.config.Events == nil {
		return
	}
	x.config.Events.Publish(ipc.NewEventRecord(observability.GetRunID(ctx), ipc.EventStatus, map[string]any{
		"status": status,
	}))
}
