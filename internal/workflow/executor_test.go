package workflow

import (
	"context"
	"testing"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/platform"
	"github.com/haasonsaas/deskmcp/internal/selector"
	"github.com/haasonsaas/deskmcp/internal/tools"
)

// noopEngine satisfies platform.Engine with no behavior; the tests in this
// file exercise step sequencing and argument flow, not platform resolution.
type noopEngine struct{}

func (noopEngine) Applications(ctx context.Context) ([]element.Element, error) { return nil, nil }
func (noopEngine) FocusedElement(ctx context.Context) (element.Element, error) {
	return element.Element{}, deskerr.ElementNotFound("nothing focused")
}
func (noopEngine) Root(ctx context.Context) (element.Element, error) { return element.Element{}, nil }
func (noopEngine) Resolve(ctx context.Context, sel selector.Selector, opts platform.ResolveOptions) ([]element.Element, error) {
	return nil, nil
}
func (noopEngine) Activate(ctx context.Context, el element.Element, opts platform.ActivationOptions) (func(), error) {
	return func() {}, nil
}
func (noopEngine) Name() string { return "noop" }
func (noopEngine) Close() error { return nil }

func newTestDesktop() *desktop.Desktop {
	return desktop.New(noopEngine{}, desktop.Options{})
}

// registerEchoTool adds a tool that returns its own arguments unchanged, so
// tests can assert on exactly what an executor substituted into them.
func registerEchoTool(t *testing.T, r *tools.Registry, name string) {
	t.Helper()
	err := r.Register(tools.Definition{
		Name: name,
		Run: func(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
			return args, nil
		},
	})
	if err != nil {
		t.Fatalf("registering %q: %v", name, err)
	}
}

// registerFlakyTool adds a tool that fails with a retryable error for the
// first failCount invocations, then succeeds.
func registerFlakyTool(t *testing.T, r *tools.Registry, name string, failCount int) *int {
	t.Helper()
	calls := 0
	err := r.Register(tools.Definition{
		Name: name,
		Run: func(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
			calls++
			if calls <= failCount {
				return nil, deskerr.New(deskerr.KindPlatformTransient, "transient failure %d", calls)
			}
			return "recovered", nil
		},
	})
	if err != nil {
		t.Fatalf("registering %q: %v", name, err)
	}
	return &calls
}

func registerFailingTool(t *testing.T, r *tools.Registry, name string) {
	t.Helper()
	err := r.Register(tools.Definition{
		Name: name,
		Run: func(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
			return nil, deskerr.New(deskerr.KindPlatformFatal, "always fails")
		},
	})
	if err != nil {
		t.Fatalf("registering %q: %v", name, err)
	}
}

func TestRunExecutesStepsSequentially(t *testing.T) {
	r := tools.NewRegistry()
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{Steps: []StepOrGroup{
		Entry(Step{ID: "a", ToolName: "echo", Arguments: map[string]any{"n": float64(1)}}),
		Entry(Step{ID: "b", ToolName: "echo", Arguments: map[string]any{"n": float64(2)}}),
	}}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %v", result.Status)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
	if result.Steps[0].StepID != "a" || result.Steps[1].StepID != "b" {
		t.Fatalf("unexpected step ordering: %+v", result.Steps)
	}
}

func TestRunSubstitutesPriorStepOutputs(t *testing.T) {
	r := tools.NewRegistry()
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{
		Variables: map[string]any{"greeting": "hello"},
		Steps: []StepOrGroup{
			Entry(Step{ID: "a", ToolName: "echo", Arguments: map[string]any{"value": "{{vars.greeting}}"}}),
			Entry(Step{ID: "b", ToolName: "echo", Arguments: map[string]any{"echoed": "prefix-{{results_by_id.a.value.value}}-suffix"}}),
		},
	}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %v: %+v", result.Status, result.Steps)
	}
	second := result.Steps[1].Value.(map[string]any)
	if second["echoed"] != "prefix-hello-suffix" {
		t.Fatalf("unexpected interpolated value: %+v", second)
	}
}

func TestRunRetriesTransientFailureThenSucceeds(t *testing.T) {
	r := tools.NewRegistry()
	calls := registerFlakyTool(t, r, "flaky", 2)
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{Steps: []StepOrGroup{
		Entry(Step{ID: "a", ToolName: "flaky", Retries: 2}),
	}}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success after retries, got %v: %+v", result.Status, result.Steps)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", *calls)
	}
	if result.Steps[0].RetriesUsed != 2 {
		t.Fatalf("expected retries_used=2, got %d", result.Steps[0].RetriesUsed)
	}
}

func TestRunJumpsToFallbackOnExhaustedRetries(t *testing.T) {
	r := tools.NewRegistry()
	registerFailingTool(t, r, "always_fails")
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{Steps: []StepOrGroup{
		Entry(Step{ID: "a", ToolName: "always_fails", FallbackID: "c"}),
		Entry(Step{ID: "b", ToolName: "echo", Arguments: map[string]any{"skip": "me"}}),
		Entry(Step{ID: "c", ToolName: "echo", Arguments: map[string]any{"recovered": true}}),
	}}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success via fallback, got %v: %+v", result.Status, result.Steps)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected step b to be skipped over by the fallback jump, got %d results: %+v", len(result.Steps), result.Steps)
	}
	if result.Steps[0].StepID != "a" || result.Steps[0].Status != StatusFailed {
		t.Fatalf("unexpected first result: %+v", result.Steps[0])
	}
	if result.Steps[1].StepID != "c" || result.Steps[1].Status != StatusSuccess {
		t.Fatalf("unexpected second result: %+v", result.Steps[1])
	}
}

func TestRunAbortsOnFailureWithoutFallbackOrContinue(t *testing.T) {
	r := tools.NewRegistry()
	registerFailingTool(t, r, "always_fails")
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{Steps: []StepOrGroup{
		Entry(Step{ID: "a", ToolName: "always_fails"}),
		Entry(Step{ID: "b", ToolName: "echo"}),
	}}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed status, got %v", result.Status)
	}
	if len(result.Steps) != 1 {
		t.Fatalf("expected execution to stop after step a, got %d results", len(result.Steps))
	}
}

func TestRunContinuesOnErrorWhenFlagged(t *testing.T) {
	r := tools.NewRegistry()
	registerFailingTool(t, r, "always_fails")
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{Steps: []StepOrGroup{
		Entry(Step{ID: "a", ToolName: "always_fails", ContinueOnError: true}),
		Entry(Step{ID: "b", ToolName: "echo"}),
	}}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected both steps to run, got %d", len(result.Steps))
	}
	if result.Steps[1].Status != StatusSuccess {
		t.Fatalf("expected step b to succeed, got %v", result.Steps[1].Status)
	}
}

func TestRunSkipsStepWhenIfIsFalse(t *testing.T) {
	r := tools.NewRegistry()
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{
		Variables: map[string]any{"count": float64(1)},
		Steps: []StepOrGroup{
			Entry(Step{ID: "a", ToolName: "echo", If: "vars.count > 2"}),
		},
	}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Steps[0].Status != StatusSkipped {
		t.Fatalf("expected step to be skipped, got %v", result.Steps[0].Status)
	}
}

func TestRunGatesEntireGroupOnce(t *testing.T) {
	r := tools.NewRegistry()
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{
		Variables: map[string]any{"enabled": false},
		Steps: []StepOrGroup{
			GroupEntry(Group{
				GroupName: "optional",
				If:        "vars.enabled == true",
				Steps: []Step{
					{ID: "a", ToolName: "echo"},
					{ID: "b", ToolName: "echo"},
				},
			}),
		},
	}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected both group steps recorded as skipped, got %d", len(result.Steps))
	}
	for _, s := range result.Steps {
		if s.Status != StatusSkipped {
			t.Fatalf("expected gated-off group steps to be skipped, got %+v", s)
		}
	}
}

func TestRunSkippableGroupAbsorbsInnerFailure(t *testing.T) {
	r := tools.NewRegistry()
	registerFailingTool(t, r, "always_fails")
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{Steps: []StepOrGroup{
		GroupEntry(Group{
			GroupName: "optional",
			Skippable: true,
			Steps: []Step{
				{ID: "a", ToolName: "always_fails"},
				{ID: "b", ToolName: "echo"},
			},
		}),
		Entry(Step{ID: "c", ToolName: "echo"}),
	}}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected the skippable group to absorb the failure, got %v: %+v", result.Status, result.Steps)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected step b to be skipped and step c to run, got %d results: %+v", len(result.Steps), result.Steps)
	}
	if result.Steps[0].StepID != "a" || result.Steps[0].Status != StatusFailed {
		t.Fatalf("unexpected first result: %+v", result.Steps[0])
	}
	if result.Steps[1].StepID != "c" || result.Steps[1].Status != StatusSuccess {
		t.Fatalf("expected group remainder skipped and step c to run, got %+v", result.Steps[1])
	}
}

func TestRunCancelsOnContextCancellation(t *testing.T) {
	r := tools.NewRegistry()
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf := Workflow{Steps: []StepOrGroup{
		Entry(Step{ID: "a", ToolName: "echo"}),
	}}

	result, err := ex.Run(ctx, wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %v", result.Status)
	}
	if len(result.Steps) != 0 {
		t.Fatalf("expected no steps to run after cancellation, got %d", len(result.Steps))
	}
}

func TestRunBindsOutputs(t *testing.T) {
	r := tools.NewRegistry()
	registerEchoTool(t, r, "echo")
	ex := NewExecutor(r, newTestDesktop(), nil)

	wf := Workflow{
		Steps: []StepOrGroup{
			Entry(Step{ID: "a", ToolName: "echo", Arguments: map[string]any{"v": "x"}, OutputBinding: "last"}),
		},
		Outputs: []OutputBinding{{Name: "final", Path: "last"}},
	}

	result, err := ex.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := result.Outputs["final"]; !ok {
		t.Fatalf("expected output binding %q to be populated, got %+v", "final", result.Outputs)
	}
}
