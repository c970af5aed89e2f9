package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/deskmcp/internal/backoff"
	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
	"github.com/haasonsaas/deskmcp/internal/tree"
)

// SequenceExecutor recursively runs a nested list of workflow-step
// descriptions, the operation the execute_sequence tool needs but
// internal/tools cannot implement directly without importing
// internal/workflow, which itself imports internal/tools to invoke steps'
// tools. internal/workflow calls RegisterSequenceExecutor during its own
// package init to close the loop without an import cycle.
type SequenceExecutor func(ctx context.Context, d *desktop.Desktop, steps []map[string]any, vars map[string]any) (any, error)

var sequenceExecutor SequenceExecutor

// RegisterSequenceExecutor installs the function execute_sequence delegates
// to. Called once by internal/workflow's init.
func RegisterSequenceExecutor(fn SequenceExecutor) { sequenceExecutor = fn }

type percentPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type clickElementArgs struct {
	Selector    string        `json:"selector"`
	PositionPct *percentPoint `json:"position_pct,omitempty"`
	ClickType   string        `json:"click_type,omitempty"`
}

type typeIntoElementArgs struct {
	Selector     string `json:"selector"`
	Text         string `json:"text"`
	ClearFirst   bool   `json:"clear_first,omitempty"`
	UseClipboard bool   `json:"use_clipboard,omitempty"`
}

type pressKeyArgs struct {
	Chord string `json:"chord"`
}

type openApplicationArgs struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

type runCommandArgs struct {
	Name      string   `json:"name"`
	Args      []string `json:"args,omitempty"`
	WorkDir   string   `json:"work_dir,omitempty"`
	TimeoutMS int      `json:"timeout_ms,omitempty"`
}

type waitArgs struct {
	Milliseconds int `json:"milliseconds"`
}

type setVariableArgs struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type executeSequenceArgs struct {
	Steps []map[string]any `json:"steps"`
}

type getApplicationsArgs struct{}

type getWindowTreeArgs struct {
	Selector         string `json:"selector,omitempty"`
	MaxDepth         *int   `json:"max_depth,omitempty"`
	IncludeAllBounds bool   `json:"include_all_bounds,omitempty"`
	Format           bool   `json:"format,omitempty"`
}

type captureScreenArgs struct {
	DisplayIndex int `json:"display_index,omitempty"`
}

type okResult struct {
	OK bool `json:"ok"`
}

// NewBuiltinRegistry builds a Registry pre-populated with the canonical
// tool set (spec §6): click_element, type_into_element, press_key,
// open_application, run_command, wait, set_variable, execute_sequence,
// get_applications, get_window_tree, capture_screen.
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, def := range builtinDefs() {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func builtinDefs() []Definition {
	return []Definition{
		mustDef("click_element", "Click an element matched by selector.", clickElementArgs{}, runClickElement),
		mustDef("type_into_element", "Type text into an element matched by selector.", typeIntoElementArgs{}, runTypeIntoElement),
		mustDef("press_key", "Dispatch a key chord to the focused element.", pressKeyArgs{}, runPressKey),
		mustDef("open_application", "Launch an application by name or path.", openApplicationArgs{}, runOpenApplication),
		mustDef("run_command", "Run an external command and capture its output.", runCommandArgs{}, runRunCommand),
		mustDef("wait", "Pause for a fixed duration.", waitArgs{}, runWait),
		mustDef("set_variable", "Assign a literal value to a workflow variable.", setVariableArgs{}, runSetVariable),
		mustDef("execute_sequence", "Run a nested list of steps as a sub-sequence.", executeSequenceArgs{}, runExecuteSequence),
		mustDef("get_applications", "List the top-level element of every visible application.", getApplicationsArgs{}, runGetApplications),
		mustDef("get_window_tree", "Extract the accessibility tree under a window or element.", getWindowTreeArgs{}, runGetWindowTree),
		mustDef("capture_screen", "Capture the current screen as a PNG image.", captureScreenArgs{}, runCaptureScreen),
	}
}

// mustDef builds a Definition, reflecting its schema from argsExample.
// Schema reflection over a fixed, compile-time-known set of argument
// structs cannot fail at runtime in a way any caller could act on, so a
// failure here is a programming error surfaced as a panic at registry
// construction rather than threaded through every call site.
func mustDef(name, description string, argsExample any, run func(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error)) Definition {
	schema, schemaJSON, err := BuildSchema(name, argsExample)
	if err != nil {
		panic(err)
	}
	return Definition{Name: name, Description: description, Schema: schema, SchemaJSON: schemaJSON, Run: run}
}

func resolveSelector(ctx context.Context, d *desktop.Desktop, sel string) (element.Element, error) {
	parsed, err := selector.Parse(sel)
	if err != nil {
		return element.Element{}, deskerr.Wrap(deskerr.KindSelectorParse, err, "invalid selector %q", sel)
	}
	return d.NewLocator(parsed).First(ctx)
}

func runClickElement(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a clickElementArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	el, err := resolveSelector(ctx, d, a.Selector)
	if err != nil {
		return nil, err
	}

	clickType := element.ClickLeft
	switch a.ClickType {
	case "", string(element.ClickLeft):
		clickType = element.ClickLeft
	case string(element.ClickDouble):
		clickType = element.ClickDouble
	case string(element.ClickRight):
		clickType = element.ClickRight
	default:
		return nil, deskerr.InvalidArgument("unknown click_type %q", a.ClickType)
	}

	var pos *element.Point
	if a.PositionPct != nil {
		pos = &element.Point{X: int(a.PositionPct.X), Y: int(a.PositionPct.Y)}
	}
	windowID, elementID := overlayIdentity(el, a.Selector)
	return d.PerformWithOverlay(windowID, elementID, "click", func() (any, error) {
		return el.Click(ctx, pos, clickType)
	})
}

func runTypeIntoElement(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a typeIntoElementArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	el, err := resolveSelector(ctx, d, a.Selector)
	if err != nil {
		return nil, err
	}
	windowID, elementID := overlayIdentity(el, a.Selector)
	return d.PerformWithOverlay(windowID, elementID, "type", func() (any, error) {
		if err := el.TypeText(ctx, a.Text, a.ClearFirst, a.UseClipboard); err != nil {
			return nil, err
		}
		return okResult{OK: true}, nil
	})
}

func runPressKey(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a pressKeyArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return d.PerformWithOverlay("", a.Chord, "press_key", func() (any, error) {
		if err := d.PressKey(ctx, a.Chord); err != nil {
			return nil, err
		}
		return okResult{OK: true}, nil
	})
}

// overlayIdentity derives the window/element key the action overlay uses to
// dedupe repeated redraws of the same target, from whatever attributes the
// platform engine populated plus the selector that resolved to el.
func overlayIdentity(el element.Element, selector string) (windowID, elementID string) {
	attrs, err := el.Attributes()
	if err != nil {
		return "", selector
	}
	windowID = attrs.WindowTitle
	elementID = attrs.StableID
	if elementID == "" {
		elementID = selector
	}
	return windowID, elementID
}

func runOpenApplication(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a openApplicationArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return d.RunCommand(ctx, a.Name, a.Args, desktop.RunCommandOptions{})
}

func runRunCommand(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a runCommandArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	opts := desktop.RunCommandOptions{WorkDir: a.WorkDir}
	if a.TimeoutMS > 0 {
		opts.Timeout = time.Duration(a.TimeoutMS) * time.Millisecond
	}
	return d.RunCommand(ctx, a.Name, a.Args, opts)
}

func runWait(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a waitArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := backoff.SleepWithContext(ctx, time.Duration(a.Milliseconds)*time.Millisecond); err != nil {
		return nil, deskerr.Wrap(deskerr.KindCancelled, err, "wait interrupted")
	}
	return okResult{OK: true}, nil
}

func runSetVariable(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a setVariableArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return a.Value, nil
}

func runExecuteSequence(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a executeSequenceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if sequenceExecutor == nil {
		return nil, deskerr.Unsupported("execute_sequence has no registered sequence executor")
	}
	return sequenceExecutor(ctx, d, a.Steps, nil)
}

type applicationSummary struct {
	Name      string `json:"name"`
	ProcessID int    `json:"process_id"`
}

func runGetApplications(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	apps, err := d.Applications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]applicationSummary, 0, len(apps))
	for _, app := range apps {
		attrs, err := app.Attributes()
		if err != nil {
			continue
		}
		out = append(out, applicationSummary{Name: attrs.Name, ProcessID: attrs.ProcessID})
	}
	return out, nil
}

func runGetWindowTree(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a getWindowTreeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	root, err := resolveWindowRoot(ctx, d, a.Selector)
	if err != nil {
		return nil, err
	}

	var metrics tree.CacheMissRecorder
	if recorder, ok := cacheMissRecorderFromContext(ctx); ok {
		metrics = recorder
	}

	return tree.Extract(ctx, root, tree.ExtractOptions{
		MaxDepth:         a.MaxDepth,
		IncludeAllBounds: a.IncludeAllBounds,
		Format:           a.Format,
		Metrics:          metrics,
	})
}

func resolveWindowRoot(ctx context.Context, d *desktop.Desktop, sel string) (element.Element, error) {
	if sel == "" {
		return d.Root(ctx)
	}
	return resolveSelector(ctx, d, sel)
}

func runCaptureScreen(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error) {
	var a captureScreenArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	png, err := d.CaptureScreen(ctx, desktop.CaptureOptions{DisplayIndex: a.DisplayIndex})
	if err != nil {
		return nil, err
	}

	result := struct {
		PNG        []byte `json:"png_base64,omitempty"`
		ArtifactID string `json:"artifact_id,omitempty"`
	}{PNG: png}

	if sink, ok := artifactSinkFromContext(ctx); ok {
		filename := fmt.Sprintf("%s_capture_screen_monitor_%d.png", time.Now().UTC().Format("20060102T150405Z"), a.DisplayIndex)
		ref, putErr := sink.PutArtifact(ctx, "screenshot", filename, "image/png", png)
		if putErr == nil {
			result.ArtifactID = ref
			result.PNG = nil
		}
	}

	return result, nil
}
