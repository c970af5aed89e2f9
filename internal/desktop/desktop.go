// Package desktop is the top-level facade (M2) aggregating a platform
// engine, the shared element cache, and the action surface §4.2 exposes to
// callers: application/window enumeration, locator construction, process
// execution, screen capture, and the key/pointer synthesis layer every
// platform engine deliberately defers to this package.
package desktop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	osexec "os/exec"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"github.com/haasonsaas/deskmcp/internal/cache"
	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/element"
	safeexec "github.com/haasonsaas/deskmcp/internal/exec"
	"github.com/haasonsaas/deskmcp/internal/locator"
	"github.com/haasonsaas/deskmcp/internal/overlay"
	"github.com/haasonsaas/deskmcp/internal/platform"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// Options configures a Desktop at construction.
type Options struct {
	// CacheSize bounds the shared element cache. Zero uses a sensible
	// default.
	CacheSize int
	// CacheTTL expires a cached element after this long even if still
	// present; zero disables expiry.
	CacheTTL time.Duration
	// HighlightOverlay enables the transient on-screen action overlay
	// (PlatformConfig.HighlightOverlay) for every action this Desktop
	// performs.
	HighlightOverlay bool
}

// Desktop is the single entry point the tool registry and workflow executor
// hold onto: one platform engine, one shared element cache, every locator
// built through it revalidating against the same cache, and the process-wide
// action overlay every action shows itself through.
type Desktop struct {
	engine  platform.Engine
	cache   *cache.ElementCache
	overlay *overlay.State
}

// New builds a Desktop over an already-constructed platform engine (see
// platform.New for the per-OS constructor). The action overlay is
// constructed here and torn down in Close, tying its lifetime to the
// engine's.
func New(engine platform.Engine, opts Options) *Desktop {
	size := opts.CacheSize
	if size <= 0 {
		size = 256
	}
	return &Desktop{
		engine:  engine,
		cache:   cache.NewElementCache(size, opts.CacheTTL),
		overlay: overlay.NewState(opts.HighlightOverlay),
	}
}

// Overlay returns the Desktop's action overlay state, so tools can show a
// status box around the action they are about to perform.
func (d *Desktop) Overlay() *overlay.State {
	return d.overlay
}

// PerformWithOverlay shows the action overlay for the element identified by
// windowID/elementID, runs fn, and hides the overlay again before returning
// — regardless of whether fn succeeds — mirroring the
// save-state/activate/act/restore shape other actions already follow.
func (d *Desktop) PerformWithOverlay(windowID, elementID, action string, fn func() (any, error)) (any, error) {
	hide := d.overlay.Guard(windowID, elementID, action)
	defer hide()
	return fn()
}

// NewLocator builds a Locator for sel rooted at the desktop root, sharing
// this Desktop's element cache unless overridden by a later locator.Option.
func (d *Desktop) NewLocator(sel selector.Selector, opts ...locator.Option) *locator.Locator {
	all := append([]locator.Option{locator.WithCache(d.cache)}, opts...)
	return locator.New(d.engine, sel, element.Element{}, all...)
}

// Applications returns the current top-level element for every visible
// process.
func (d *Desktop) Applications(ctx context.Context) ([]element.Element, error) {
	return d.engine.Applications(ctx)
}

// FocusedElement returns the element currently owning keyboard focus.
func (d *Desktop) FocusedElement(ctx context.Context) (element.Element, error) {
	return d.engine.FocusedElement(ctx)
}

// Root returns the desktop root element.
func (d *Desktop) Root(ctx context.Context) (element.Element, error) {
	return d.engine.Root(ctx)
}

// ActivateWindow brings el's containing window to the foreground, returning
// a restore function per the save-state/activate/act/restore action
// contract (spec §4.2).
func (d *Desktop) ActivateWindow(ctx context.Context, el element.Element, opts platform.ActivationOptions) (func(), error) {
	return d.engine.Activate(ctx, el, opts)
}

// Close tears down the action overlay and releases the underlying platform
// engine.
func (d *Desktop) Close() error {
	d.overlay.Hide()
	return d.engine.Close()
}

// RunCommandOptions controls a RunCommand invocation.
type RunCommandOptions struct {
	WorkDir string
	Env     map[string]string
	Timeout time.Duration
}

// RunCommandResult reports the outcome of a RunCommand invocation.
type RunCommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// RunCommand executes an external process, validating name and args through
// internal/exec's shell-injection guard before anything reaches os/exec —
// every tool-initiated process launch goes through this one chokepoint.
func (d *Desktop) RunCommand(ctx context.Context, name string, args []string, opts RunCommandOptions) (RunCommandResult, error) {
	safeName, err := safeexec.SanitizeExecutableValue(name)
	if err != nil {
		return RunCommandResult{}, deskerr.Wrap(deskerr.KindInvalidArgument, err, "command name %q is unsafe", name)
	}
	safeArgs, err := safeexec.SanitizeArguments(args)
	if err != nil {
		return RunCommandResult{}, deskerr.Wrap(deskerr.KindInvalidArgument, err, "command arguments are unsafe")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := osexec.CommandContext(ctx, safeName, safeArgs...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), envPairs(opts.Env)...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := RunCommandResult{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}

	if runErr == nil {
		return result, nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return result, deskerr.Timeout("command %q timed out after %s", safeName, opts.Timeout)
	}
	var exitErr *osexec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, deskerr.Wrap(deskerr.KindToolFailed, runErr, "command %q exited %d", safeName, result.ExitCode)
	}
	return result, deskerr.Wrap(deskerr.KindPlatformFatal, runErr, "command %q failed to start", safeName)
}

func envPairs(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// CaptureOptions controls a CaptureScreen call. A nil Bounds captures the
// whole of DisplayIndex (default 0, the primary display).
type CaptureOptions struct {
	DisplayIndex int
	Bounds       *element.Bounds
}

// CaptureScreen renders the current on-screen pixels as a PNG-encoded image,
// backing the capture_screen tool and screenshot artefacts.
func (d *Desktop) CaptureScreen(ctx context.Context, opts CaptureOptions) ([]byte, error) {
	var img *image.RGBA
	var err error
	if opts.Bounds != nil {
		rect := image.Rect(opts.Bounds.X, opts.Bounds.Y, opts.Bounds.X+opts.Bounds.W, opts.Bounds.Y+opts.Bounds.H)
		img, err = screenshot.CaptureRect(rect)
	} else {
		img, err = screenshot.CaptureDisplay(opts.DisplayIndex)
	}
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformTransient, err, "screen capture failed")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "encoding screenshot failed")
	}
	return buf.Bytes(), nil
}

// robotgoKeyNames translates the chord key tokens internal/platform.Chord
// produces into robotgo's key-name vocabulary; the two differ only for
// "escape", which robotgo spells "esc".
var robotgoKeyNames = map[string]string{
	"escape": "esc",
}

func robotgoKeyName(key string) string {
	if name, ok := robotgoKeyNames[key]; ok {
		return name
	}
	return key
}

// PressKey parses chord (the platform-neutral "+"-joined notation, spec
// §4.2) and dispatches it as a synthetic key event. This is the layer every
// platform engine's KeyboardInput capability stub defers to, since
// synthesising input at the OS level rather than through the accessibility
// tree is the only approach that works uniformly across element roles.
func (d *Desktop) PressKey(ctx context.Context, chord string) error {
	c, err := platform.ParseChord(chord)
	if err != nil {
		return err
	}

	key := robotgoKeyName(c.Key)
	mods := make([]interface{}, 0, 4)
	if c.Ctrl {
		mods = append(mods, "ctrl")
	}
	if c.Alt {
		mods = append(mods, "alt")
	}
	if c.Shift {
		mods = append(mods, "shift")
	}
	if c.Meta {
		mods = append(mods, "cmd")
	}

	if err := robotgo.KeyTap(key, mods...); err != nil {
		return deskerr.Wrap(deskerr.KindPlatformTransient, err, "key chord %q dispatch failed", chord)
	}
	return nil
}

// MoveTo dispatches a raw pointer move to a screen-pixel coordinate,
// independent of any element's Invoker.Click — the synthesis counterpart to
// PressKey for controls no accessibility action can reach directly.
func (d *Desktop) MoveTo(ctx context.Context, pt element.Point) error {
	robotgo.MoveMouse(pt.X, pt.Y)
	return nil
}
