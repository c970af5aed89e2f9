package element

import "context"

// ClickType enumerates the pointer gestures Invoker.Click accepts.
type ClickType string

const (
	ClickLeft   ClickType = "left"
	ClickDouble ClickType = "double"
	ClickRight  ClickType = "right"
)

// ClickResult reports how a click was actually delivered — some platform
// engines invoke the element's native action instead of synthesising a
// pointer event, which callers may want to know for diagnostics.
type ClickResult struct {
	Method  string // "synthetic_click" or "native_invoke"
	Coords  *Point
	Details string
}

// Point is a screen-pixel coordinate.
type Point struct{ X, Y int }

// ScrollDirection enumerates the directions Scroller.Scroll accepts.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Capability interfaces. A NativeNode implements whichever subset its
// platform and role support; Element methods type-assert against these and
// fail with deskerr.KindUnsupported when absent (capability pattern, spec
// §4.2 and §9 in place of a deep per-role class hierarchy).

// Invoker performs a default/primary action on an element.
type Invoker interface {
	Invoke(ctx context.Context) error
	Click(ctx context.Context, positionPct *Point, clickType ClickType) (ClickResult, error)
}

// Valuer reads and writes a single scalar value (edit fields, combo boxes).
type Valuer interface {
	Value(ctx context.Context) (string, error)
	SetValue(ctx context.Context, value string) error
}

// Toggler flips a boolean on/off state (checkboxes, toggle buttons).
type Toggler interface {
	Toggled(ctx context.Context) (bool, error)
	SetToggled(ctx context.Context, on bool) error
}

// Selector selects an item or option by visible name (list items, combo
// box options, radio buttons).
type Selector interface {
	Selected(ctx context.Context) (bool, error)
	SetSelected(ctx context.Context, selected bool) error
	SelectOption(ctx context.Context, name string) error
}

// Scroller scrolls a container by a relative magnitude in [0,1].
type Scroller interface {
	Scroll(ctx context.Context, direction ScrollDirection, magnitude float64) error
}

// WindowController activates, moves, and closes a top-level window.
type WindowController interface {
	Activate(ctx context.Context) error
	Close(ctx context.Context) error
}

// TextEditor types and clears text content, optionally via the clipboard to
// avoid per-keystroke synthetic input.
type TextEditor interface {
	TypeText(ctx context.Context, text string, clearFirst bool, useClipboard bool) error
}

// KeyboardInput dispatches a parsed key chord to the element (or the
// focused element, if the native node represents the desktop root).
type KeyboardInput interface {
	PressKey(ctx context.Context, chord string) error
}

// MouseInput dispatches raw pointer events independent of Invoker.Click.
type MouseInput interface {
	MoveTo(ctx context.Context, pt Point) error
}

// RangeValuer reads and writes a numeric value on a bounded control
// (sliders, progress bars, spinners).
type RangeValuer interface {
	RangeValue(ctx context.Context) (float64, error)
	SetRangeValue(ctx context.Context, value float64) error
}

// Focuser moves keyboard focus onto the element.
type Focuser interface {
	Focus(ctx context.Context) error
}

// Capturer renders the element's current on-screen appearance, e.g. for a
// screenshot artefact.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ChildEnumerator lists the immediate children of a node. Every platform
// engine's node type implements this; it is the one capability internal/tree
// depends on to walk a subtree without reaching back into platform-specific
// code.
type ChildEnumerator interface {
	Children(ctx context.Context) ([]Element, error)
}

// --- Element-level convenience wrappers ---

func (e Element) Invoke(ctx context.Context) error {
	c, err := capability[Invoker](e)
	if err != nil {
		return err
	}
	return c.Invoke(ctx)
}

func (e Element) Click(ctx context.Context, positionPct *Point, clickType ClickType) (ClickResult, error) {
	c, err := capability[Invoker](e)
	if err != nil {
		return ClickResult{}, err
	}
	return c.Click(ctx, positionPct, clickType)
}

func (e Element) GetValue(ctx context.Context) (string, error) {
	c, err := capability[Valuer](e)
	if err != nil {
		return "", err
	}
	return c.Value(ctx)
}

func (e Element) SetValue(ctx context.Context, value string) error {
	c, err := capability[Valuer](e)
	if err != nil {
		return err
	}
	return c.SetValue(ctx, value)
}

func (e Element) SetToggled(ctx context.Context, on bool) error {
	c, err := capability[Toggler](e)
	if err != nil {
		return err
	}
	return c.SetToggled(ctx, on)
}

func (e Element) SetSelected(ctx context.Context, selected bool) error {
	c, err := capability[Selector](e)
	if err != nil {
		return err
	}
	return c.SetSelected(ctx, selected)
}

func (e Element) SelectOption(ctx context.Context, name string) error {
	c, err := capability[Selector](e)
	if err != nil {
		return err
	}
	return c.SelectOption(ctx, name)
}

func (e Element) Scroll(ctx context.Context, direction ScrollDirection, magnitude float64) error {
	c, err := capability[Scroller](e)
	if err != nil {
		return err
	}
	return c.Scroll(ctx, direction, magnitude)
}

func (e Element) ActivateWindow(ctx context.Context) error {
	c, err := capability[WindowController](e)
	if err != nil {
		return err
	}
	return c.Activate(ctx)
}

func (e Element) CloseWindow(ctx context.Context) error {
	c, err := capability[WindowController](e)
	if err != nil {
		return err
	}
	return c.Close(ctx)
}

func (e Element) TypeText(ctx context.Context, text string, clearFirst, useClipboard bool) error {
	c, err := capability[TextEditor](e)
	if err != nil {
		return err
	}
	return c.TypeText(ctx, text, clearFirst, useClipboard)
}

func (e Element) PressKey(ctx context.Context, chord string) error {
	c, err := capability[KeyboardInput](e)
	if err != nil {
		return err
	}
	return c.PressKey(ctx, chord)
}

func (e Element) SetRangeValue(ctx context.Context, value float64) error {
	c, err := capability[RangeValuer](e)
	if err != nil {
		return err
	}
	return c.SetRangeValue(ctx, value)
}

func (e Element) Focus(ctx context.Context) error {
	c, err := capability[Focuser](e)
	if err != nil {
		return err
	}
	return c.Focus(ctx)
}

func (e Element) Capture(ctx context.Context) ([]byte, error) {
	c, err := capability[Capturer](e)
	if err != nil {
		return nil, err
	}
	return c.Capture(ctx)
}

func (e Element) Children(ctx context.Context) ([]Element, error) {
	c, err := capability[ChildEnumerator](e)
	if err != nil {
		return nil, err
	}
	return c.Children(ctx)
}
