// Package workflow implements the declarative workflow executor (T2): a
// flat, sequential list of tool-invocation steps with gating, retry,
// fallback, and output-parsing semantics, plus the telemetry (T3) recorded
// for each run.
package workflow

import (
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/deskmcp/internal/tools"
)

// Step is one tool invocation within a Workflow.
type Step struct {
	// ID names this step for result lookup, {{path}} substitution, and
	// fallback targeting. Steps without an explicit ID are addressable
	// only by their position in results.
	ID string `json:"id,omitempty"`

	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`

	// ContinueOnError suppresses a failed step's effect on the workflow's
	// overall status: the step is still recorded as failed, but execution
	// proceeds to the next step rather than aborting.
	ContinueOnError bool `json:"continue_on_error,omitempty"`

	// DelayMS is a settle delay observed after this step completes, before
	// the next step begins.
	DelayMS int `json:"delay_ms,omitempty"`

	// TimeoutMS bounds a single invocation attempt. Zero means no
	// per-attempt timeout beyond the workflow's own context deadline.
	TimeoutMS int `json:"timeout_ms,omitempty"`

	// Retries is the number of additional attempts after the first, only
	// consumed for retryable error kinds.
	Retries int `json:"retries,omitempty"`

	// FallbackID names a step to jump to once, if every attempt of this
	// step fails. The target step must exist; a target already used as a
	// fallback destination once is fatal to re-enter.
	FallbackID string `json:"fallback_id,omitempty"`

	// If gates this step: a gval boolean expression evaluated against
	// {vars, results_by_id, env}. A false result skips the step.
	If string `json:"if,omitempty"`

	// Skippable turns an unresolved {{path}} substitution into a skipped
	// step instead of a fatal InvalidArgument.
	Skippable bool `json:"skippable,omitempty"`

	// Parser, when set, runs over this step's own tool output (or an
	// earlier step's, via Parser.UITreeSourceStepID) and merges the
	// extracted records into the step result and, if OutputBinding is
	// set, into the variable table.
	Parser *tools.ParserDef `json:"parser,omitempty"`

	// OutputBinding names the variable the parser's extracted records (or,
	// absent a parser, the tool's raw result) are written to.
	OutputBinding string `json:"output_binding,omitempty"`
}

// Group runs its Steps as an inline sub-sequence. Skippable absorbs an
// inner step failure by skipping the remainder of the group rather than
// aborting the whole workflow; If gates the entire group the same way Step.If
// gates a single step.
type Group struct {
	GroupName string `json:"group_name"`
	Steps     []Step `json:"steps"`
	Skippable bool   `json:"skippable,omitempty"`
	If        string `json:"if,omitempty"`
}

// StepOrGroup is the sum type a Workflow's top-level Steps list holds.
type StepOrGroup struct {
	Step  *Step
	Group *Group
}

// Entry wraps a Step as a top-level StepOrGroup.
func Entry(s Step) StepOrGroup { return StepOrGroup{Step: &s} }

// GroupEntry wraps a Group as a top-level StepOrGroup.
func GroupEntry(g Group) StepOrGroup { return StepOrGroup{Group: &g} }

// OutputBinding extracts one named value from the final variable table into
// WorkflowResult.Outputs.
type OutputBinding struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Workflow is a complete, parsed automation script.
type Workflow struct {
	Steps       []StepOrGroup   `json:"steps"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Inputs      *jsonschema.Schema `json:"inputs,omitempty"`
	Outputs     []OutputBinding `json:"outputs,omitempty"`
	StopOnError bool            `json:"stop_on_error,omitempty"`
}

// StepStatus enumerates a StepResult's terminal state.
type StepStatus string

const (
	StatusSuccess   StepStatus = "success"
	StatusSkipped   StepStatus = "skipped"
	StatusFailed    StepStatus = "failed"
	StatusCancelled StepStatus = "cancelled"
)

// ErrorInfo is the serialisable projection of a deskerr.Error carried on a
// failed StepResult.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StepResult records the outcome of one executed (or skipped) step.
type StepResult struct {
	StepID      string         `json:"step_id"`
	ToolName    string         `json:"tool_name"`
	Status      StepStatus     `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	DurationMS  int64          `json:"duration_ms"`
	Value       any            `json:"value,omitempty"`
	Error       *ErrorInfo     `json:"error,omitempty"`
	Parsed      []map[string]any `json:"parsed,omitempty"`
	RetriesUsed int            `json:"retries_used"`
	// UITree mirrors Value when this step invoked get_window_tree, so
	// {{path}} substitution and "if" expressions can reach it as
	// results_by_id.<id>.ui_tree without knowing which tool produced it.
	UITree any `json:"ui_tree,omitempty"`
}

// WorkflowResult is the aggregate outcome of a Run call.
type WorkflowResult struct {
	Status          StepStatus       `json:"status"`
	Steps           []StepResult     `json:"steps"`
	VariablesAfter  map[string]any   `json:"variables_after,omitempty"`
	Outputs         map[string]any   `json:"outputs,omitempty"`
	TotalDurationMS int64            `json:"total_duration_ms"`
}
