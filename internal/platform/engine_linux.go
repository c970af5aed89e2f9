//go:build linux

package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

const (
	atspiBusName            = "org.a11y.Bus"
	atspiBusPath            = "/org/a11y/bus"
	atspiRegistryName       = "org.a11y.atspi.Registry"
	atspiAccessibleIface    = "org.a11y.atspi.Accessible"
	atspiActionIface        = "org.a11y.atspi.Action"
	atspiValueIface         = "org.a11y.atspi.Value"
	atspiComponentIface     = "org.a11y.atspi.Component"
	atspiSelectionIface     = "org.a11y.atspi.Selection"
	atspiTextIface          = "org.a11y.atspi.Text"
	atspiEditableTextIface  = "org.a11y.atspi.EditableText"
	atspiPropertiesIface    = "org.freedesktop.DBus.Properties"
	atspiRootPath           = dbus.ObjectPath("/org/a11y/atspi/accessible/root")
)

// linuxRoleTable maps AT-SPI role names (as returned by GetRoleName) to the
// canonical role set shared with the other platform engines.
var linuxRoleTable = map[string]string{
	"push button": "Button", "toggle button": "CheckBox", "check box": "CheckBox",
	"radio button": "RadioButton", "combo box": "ComboBox", "text": "Edit",
	"entry": "Edit", "label": "Text", "menu item": "MenuItem", "menu": "Menu",
	"menu bar": "Menu", "frame": "Window", "dialog": "Dialog", "panel": "Group",
	"list item": "ListItem", "list box": "ListBox", "tree": "Tree",
	"tree item": "TreeItem", "table": "Table", "table row": "Row",
	"table cell": "Cell", "page tab": "Tab", "tool bar": "ToolBar",
	"scroll bar": "ScrollBar", "slider": "Slider", "progress bar": "ProgressBar",
	"image": "Image", "link": "Hyperlink", "separator": "Separator",
	"column header": "Header",
}

type linuxEngine struct {
	worker *staWorker

	mu   sync.Mutex
	conn *dbus.Conn
}

// New constructs the AT-SPI engine. AT-SPI is reached over the session's
// accessibility bus (org.a11y.Bus), a private D-Bus instance the desktop
// session activates on demand; DBus method calls here are serialised onto a
// single worker goroutine for the same reason the Windows engine serialises
// onto an OS thread — godbus connections are safe for concurrent use, but
// serialising keeps call ordering and error attribution simple across
// engines built the same way.
func New() (Engine, error) {
	sessionConn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "connecting to session bus failed")
	}

	var busAddress string
	obj := sessionConn.Object(atspiBusName, dbus.ObjectPath(atspiBusPath))
	if err := obj.Call("org.a11y.Bus.GetAddress", 0).Store(&busAddress); err != nil {
		sessionConn.Close()
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "accessibility bus is not available; enable assistive technologies")
	}
	sessionConn.Close()

	a11yConn, err := dbus.Dial(busAddress)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "dialing accessibility bus failed")
	}
	if err := a11yConn.Auth(nil); err != nil {
		a11yConn.Close()
		return nil, deskerr.Wrap(deskerr.KindPlatformFatal, err, "authenticating to accessibility bus failed")
	}

	return &linuxEngine{worker: newSTAWorker(), conn: a11yConn}, nil
}

func (e *linuxEngine) Name() string { return "linux" }

func (e *linuxEngine) Close() error {
	e.mu.Lock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.mu.Unlock()
	return e.worker.Close()
}

func (e *linuxEngine) Root(ctx context.Context) (element.Element, error) {
	var el element.Element
	err := e.worker.Do(ctx, func() error {
		el = e.bindElement(atspiRegistryName, atspiRootPath)
		return nil
	})
	return el, err
}

func (e *linuxEngine) Applications(ctx context.Context) ([]element.Element, error) {
	var apps []element.Element
	err := e.worker.Do(ctx, func() error {
		root := e.conn.Object(atspiRegistryName, atspiRootPath)
		var children []dbus.Variant
		if err := root.Call(atspiAccessibleIface+".GetChildren", 0).Store(&children); err != nil {
			return err
		}
		for _, child := range children {
			ref, ok := child.Value().([]interface{})
			if !ok || len(ref) != 2 {
				continue
			}
			sender, _ := ref[0].(string)
			path, _ := ref[1].(dbus.ObjectPath)
			if sender == "" || path == "" {
				continue
			}
			apps = append(apps, e.bindElement(sender, path))
		}
		return nil
	})
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformTransient, err, "enumerating applications failed")
	}
	return apps, nil
}

func (e *linuxEngine) FocusedElement(ctx context.Context) (element.Element, error) {
	return element.Element{}, deskerr.Unsupported("AT-SPI focus tracking requires the event-listener interface, not yet wired")
}

func (e *linuxEngine) Resolve(ctx context.Context, sel selector.Selector, opts ResolveOptions) ([]element.Element, error) {
	root := opts.Under
	if root.IsZero() {
		r, err := e.Root(ctx)
		if err != nil {
			return nil, err
		}
		root = r
	}

	native, err := element.Unwrap(root)
	if err != nil {
		return nil, err
	}
	node, ok := native.(*linuxNode)
	if !ok {
		return nil, deskerr.Unsupported("element was not created by the AT-SPI engine")
	}

	var matches []element.Element
	err = e.worker.Do(ctx, func() error {
		return e.walk(node.sender, node.path, func(sender string, path dbus.ObjectPath) bool {
			candidate := e.bindElement(sender, path)
			attrs, aErr := candidate.Attributes()
			if aErr == nil && matchesAtomic(sel, attrs) {
				matches = append(matches, candidate)
				return !opts.First
			}
			return true
		})
	})
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformTransient, err, "resolving selector failed")
	}
	return matches, nil
}

// walk performs a depth-first traversal over AT-SPI's GetChildren, invoking
// visit on every node; visit returns false to stop early (opts.First).
func (e *linuxEngine) walk(sender string, path dbus.ObjectPath, visit func(string, dbus.ObjectPath) bool) bool {
	if !visit(sender, path) {
		return false
	}

	obj := e.conn.Object(sender, path)
	var children []dbus.Variant
	if err := obj.Call(atspiAccessibleIface+".GetChildren", 0).Store(&children); err != nil {
		return true
	}
	for _, child := range children {
		ref, ok := child.Value().([]interface{})
		if !ok || len(ref) != 2 {
			continue
		}
		childSender, _ := ref[0].(string)
		childPath, _ := ref[1].(dbus.ObjectPath)
		if childSender == "" || childPath == "" {
			continue
		}
		if !e.walk(childSender, childPath, visit) {
			return false
		}
	}
	return true
}

func (e *linuxEngine) Activate(ctx context.Context, el element.Element, opts ActivationOptions) (func(), error) {
	native, err := element.Unwrap(el)
	if err != nil {
		return func() {}, err
	}
	node, ok := native.(*linuxNode)
	if !ok {
		return func() {}, deskerr.Unsupported("element was not created by the AT-SPI engine")
	}

	err = e.worker.Do(ctx, func() error {
		if opts.SkipActivation {
			return nil
		}
		obj := e.conn.Object(node.sender, node.path)
		return obj.Call(atspiComponentIface+".GrabFocus", 0).Err
	})
	return func() {}, err
}

type linuxNode struct {
	engine *linuxEngine
	sender string
	path   dbus.ObjectPath
	alive  bool
	mu     sync.Mutex
}

func (e *linuxEngine) bindElement(sender string, path dbus.ObjectPath) element.Element {
	node := &linuxNode{engine: e, sender: sender, path: path, alive: true}
	return globalArena.Bind(node)
}

func (n *linuxNode) object() *dbus.Object {
	return n.engine.conn.Object(n.sender, n.path)
}

func (n *linuxNode) getProp(iface, name string) (dbus.Variant, error) {
	return n.object().GetProperty(iface + "." + name)
}

func (n *linuxNode) Attributes() (element.Attributes, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.alive {
		return element.Attributes{}, deskerr.ElementNotFound("AT-SPI element is stale")
	}

	attrs := element.Attributes{Enabled: true}

	var name string
	if err := n.object().Call(atspiAccessibleIface+".GetName", 0).Store(&name); err == nil {
		attrs.Name = name
	}

	var roleName string
	if err := n.object().Call(atspiAccessibleIface+".GetRoleName", 0).Store(&roleName); err == nil {
		if canonical, ok := linuxRoleTable[strings.ToLower(roleName)]; ok {
			attrs.Role = canonical
		} else {
			attrs.Role = "Unknown"
		}
	}

	var states []uint32
	if err := n.object().Call(atspiAccessibleIface+".GetState", 0).Store(&states); err == nil {
		attrs.Enabled = hasState(states, atspiStateEnabled)
		attrs.Focused = hasState(states, atspiStateFocused)
		attrs.KeyboardFocusable = hasState(states, atspiStateFocusable)
	}

	if v, err := n.getProp(atspiValueIface, "CurrentValue"); err == nil {
		attrs.Value = fmt.Sprintf("%v", v.Value())
	}

	return attrs, nil
}

// AT-SPI state bitfield indices from the Accessible2 state enumeration.
const (
	atspiStateEnabled   = 6
	atspiStateFocusable = 11
	atspiStateFocused   = 12
)

func hasState(states []uint32, bit int) bool {
	word := bit / 32
	offset := uint(bit % 32)
	if word >= len(states) {
		return false
	}
	return states[word]&(1<<offset) != 0
}

func (n *linuxNode) Children(ctx context.Context) ([]element.Element, error) {
	var children []element.Element
	err := n.engine.worker.Do(ctx, func() error {
		var rawChildren []dbus.Variant
		if err := n.object().Call(atspiAccessibleIface+".GetChildren", 0).Store(&rawChildren); err != nil {
			return err
		}
		for _, child := range rawChildren {
			ref, ok := child.Value().([]interface{})
			if !ok || len(ref) != 2 {
				continue
			}
			sender, _ := ref[0].(string)
			path, _ := ref[1].(dbus.ObjectPath)
			if sender == "" || path == "" {
				continue
			}
			children = append(children, n.engine.bindElement(sender, path))
		}
		return nil
	})
	return children, err
}

func (n *linuxNode) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alive = false
}

func (n *linuxNode) Alive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.alive
}

func (n *linuxNode) Invoke(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		var nActions int32
		if err := n.object().Call(atspiActionIface+".GetNActions", 0).Store(&nActions); err != nil || nActions == 0 {
			return deskerr.Unsupported("element exposes no AT-SPI actions")
		}
		return n.object().Call(atspiActionIface+".DoAction", 0, int32(0)).Err
	})
}

func (n *linuxNode) Click(ctx context.Context, positionPct *element.Point, clickType element.ClickType) (element.ClickResult, error) {
	if err := n.Invoke(ctx); err != nil {
		return element.ClickResult{}, err
	}
	return element.ClickResult{Method: "native_invoke"}, nil
}

func (n *linuxNode) Value(ctx context.Context) (string, error) {
	v, err := n.getProp(atspiValueIface, "CurrentValue")
	if err != nil {
		return "", deskerr.Wrap(deskerr.KindUnsupported, err, "element does not expose the Value interface")
	}
	return fmt.Sprintf("%v", v.Value()), nil
}

func (n *linuxNode) SetValue(ctx context.Context, value string) error {
	return n.engine.worker.Do(ctx, func() error {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return n.object().SetProperty(atspiValueIface+".CurrentValue", dbus.MakeVariant(f))
		}
		return n.object().Call(atspiEditableTextIface+".SetTextContents", 0, value).Err
	})
}

func (n *linuxNode) Selected(ctx context.Context) (bool, error) {
	var selected bool
	err := n.engine.worker.Do(ctx, func() error {
		var states []uint32
		if err := n.object().Call(atspiAccessibleIface+".GetState", 0).Store(&states); err != nil {
			return err
		}
		const atspiStateSelected = 14
		selected = hasState(states, atspiStateSelected)
		return nil
	})
	return selected, err
}

func (n *linuxNode) SetSelected(ctx context.Context, selected bool) error {
	return n.engine.worker.Do(ctx, func() error {
		method := atspiSelectionIface + ".SelectChild"
		if !selected {
			method = atspiSelectionIface + ".DeselectChild"
		}
		return n.object().Call(method, 0, int32(0)).Err
	})
}

func (n *linuxNode) SelectOption(ctx context.Context, name string) error {
	return deskerr.Unsupported("select by option name requires resolving a child item first")
}

// Scroll has no AT-SPI equivalent of UIA's ScrollPattern or a direct pixel
// offset call; scrolling containers is synthesised via pointer wheel events
// against the element's Component extents in the desktop facade instead.
func (n *linuxNode) Scroll(ctx context.Context, direction element.ScrollDirection, magnitude float64) error {
	return deskerr.Unsupported("scrolling is synthesised by the desktop facade, not the AT-SPI engine")
}

func (n *linuxNode) Activate(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		return n.object().Call(atspiComponentIface+".GrabFocus", 0).Err
	})
}

func (n *linuxNode) Close(ctx context.Context) error {
	return deskerr.Unsupported("AT-SPI exposes no generic window-close action outside the window manager protocol")
}

func (n *linuxNode) TypeText(ctx context.Context, text string, clearFirst, useClipboard bool) error {
	if clearFirst {
		if err := n.SetValue(ctx, ""); err != nil {
			return err
		}
	}
	if useClipboard {
		return deskerr.Unsupported("clipboard-based typing is performed by internal/clipboard, not the engine")
	}
	return n.SetValue(ctx, text)
}

func (n *linuxNode) PressKey(ctx context.Context, chord string) error {
	return deskerr.Unsupported("key dispatch is performed by the desktop facade's input layer")
}

func (n *linuxNode) RangeValue(ctx context.Context) (float64, error) {
	v, err := n.getProp(atspiValueIface, "CurrentValue")
	if err != nil {
		return 0, deskerr.Wrap(deskerr.KindUnsupported, err, "element does not expose the Value interface")
	}
	f, _ := v.Value().(float64)
	return f, nil
}

func (n *linuxNode) SetRangeValue(ctx context.Context, value float64) error {
	return n.engine.worker.Do(ctx, func() error {
		return n.object().SetProperty(atspiValueIface+".CurrentValue", dbus.MakeVariant(value))
	})
}

func (n *linuxNode) Focus(ctx context.Context) error {
	return n.Activate(ctx)
}
