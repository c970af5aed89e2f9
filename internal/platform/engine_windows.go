//go:build windows

package platform

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// UI Automation property and pattern IDs used via IDispatch, avoiding raw
// vtable offsets (github.com/go-ole/go-ole + oleutil.CallMethod/GetProperty,
// the idiom carried over from the pack's Windows UIA readers).
const (
	uiaNamePropertyID             = 30005
	uiaControlTypePropertyID      = 30003
	uiaBoundingRectanglePropertyID = 30001
	uiaIsEnabledPropertyID        = 30010
	uiaHasKeyboardFocusPropertyID = 30008
	uiaIsKeyboardFocusablePropertyID = 30009
	uiaProcessIDPropertyID        = 30002
	uiaAutomationIDPropertyID     = 30011

	uiaInvokePatternID   = 10000
	uiaValuePatternID    = 10002
	uiaTogglePatternID   = 10015
	uiaSelectionItemPatternID = 10010
	uiaScrollPatternID   = 10004
	uiaRangeValuePatternID = 10003
	uiaWindowPatternID   = 10009

	treeScopeChildren    = 2
	treeScopeDescendants = 4
)

var user32 = syscall.NewLazyDLL("user32.dll")
var procGetForegroundWindow = user32.NewProc("GetForegroundWindow")
var procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
var procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
var procEnumWindows = user32.NewProc("EnumWindows")
var procIsWindowVisible = user32.NewProc("IsWindowVisible")

func init() {
	roleTranslationTable = windowsRoleTable
}

var windowsRoleTable = map[int32]string{
	50000: "Button", 50001: "Calendar", 50002: "CheckBox", 50003: "ComboBox",
	50004: "Edit", 50005: "Hyperlink", 50006: "Image", 50007: "ListItem",
	50008: "ListBox", 50009: "Menu", 50010: "Menu", 50011: "MenuItem",
	50012: "ProgressBar", 50013: "RadioButton", 50014: "ScrollBar",
	50015: "Slider", 50016: "Spinner", 50017: "StatusBar", 50018: "Tab",
	50019: "TabItem", 50020: "Text", 50021: "ToolBar", 50023: "Tree",
	50024: "TreeItem", 50025: "Custom", 50026: "Group", 50028: "Table",
	50029: "Row", 50030: "Document", 50031: "SplitButton", 50032: "Window",
	50033: "Pane", 50034: "Header", 50035: "HeaderItem", 50036: "Table",
	50037: "TitleBar", 50038: "Separator", 50040: "AppBar",
}

// roleTranslationTable is populated by the active platform's init() so
// windowsEngine's (and, on other OSes, that OS's) role mapper has a single
// place to look up the per-platform canonical role table named by spec §9's
// open question on platform role mapping.
var roleTranslationTable map[int32]string

type windowsEngine struct {
	worker *staWorker

	mu      sync.Mutex
	automation *ole.IDispatch
}

// New constructs the Windows UI Automation engine.
func New() (Engine, error) {
	e := &windowsEngine{worker: newSTAWorker()}
	err := e.worker.Do(context.Background(), func() error {
		if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
			return fmt.Errorf("CoInitializeEx: %w", err)
		}
		unknown, err := oleutil.CreateObject("UIAutomation.CUIAutomation")
		if err != nil {
			return fmt.Errorf("create UIAutomation.CUIAutomation: %w", err)
		}
		disp, err := unknown.QueryInterface(ole.IID_IDispatch)
		if err != nil {
			unknown.Release()
			return fmt.Errorf("query IDispatch: %w", err)
		}
		e.automation = disp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (e *windowsEngine) Name() string { return "windows" }

func (e *windowsEngine) Close() error {
	e.mu.Lock()
	if e.automation != nil {
		e.automation.Release()
		e.automation = nil
	}
	e.mu.Unlock()
	return e.worker.Close()
}

func (e *windowsEngine) Root(ctx context.Context) (element.Element, error) {
	var root *ole.IDispatch
	err := e.worker.Do(ctx, func() error {
		result, err := oleutil.CallMethod(e.automation, "GetRootElement")
		if err != nil {
			return fmt.Errorf("GetRootElement: %w", err)
		}
		root = result.ToIDispatch()
		return nil
	})
	if err != nil {
		return element.Element{}, deskerr.Wrap(deskerr.KindPlatformTransient, err, "GetRootElement failed")
	}
	return e.bindElement(root, 0), nil
}

func (e *windowsEngine) Applications(ctx context.Context) ([]element.Element, error) {
	var hwnds []uintptr
	callback := syscall.NewCallback(func(hwnd, _ uintptr) uintptr {
		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible != 0 {
			hwnds = append(hwnds, hwnd)
		}
		return 1
	})
	procEnumWindows.Call(callback, 0)

	var apps []element.Element
	err := e.worker.Do(ctx, func() error {
		for _, hwnd := range hwnds {
			result, err := oleutil.CallMethod(e.automation, "ElementFromHandle", int64(hwnd))
			if err != nil {
				continue
			}
			if disp := result.ToIDispatch(); disp != nil {
				apps = append(apps, e.bindElement(disp, hwnd))
			}
		}
		return nil
	})
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformTransient, err, "enumerating applications failed")
	}
	return apps, nil
}

func (e *windowsEngine) FocusedElement(ctx context.Context) (element.Element, error) {
	var focused *ole.IDispatch
	err := e.worker.Do(ctx, func() error {
		result, err := oleutil.CallMethod(e.automation, "GetFocusedElement")
		if err != nil {
			return err
		}
		focused = result.ToIDispatch()
		return nil
	})
	if err != nil || focused == nil {
		return element.Element{}, deskerr.ElementNotFound("no element currently has keyboard focus")
	}
	return e.bindElement(focused, 0), nil
}

// Resolve walks the UI Automation tree under opts.Under (or the desktop
// root) looking for nodes matching sel. Chains, nth, has, and spatial
// relations are evaluated by internal/locator against the flattened
// candidate set this returns per stage; the engine itself only needs to
// enumerate FindAll(Descendants) and filter by the atomic predicates it can
// push down (role, name) for efficiency.
func (e *windowsEngine) Resolve(ctx context.Context, sel selector.Selector, opts ResolveOptions) ([]element.Element, error) {
	root := opts.Under
	if root.IsZero() {
		r, err := e.Root(ctx)
		if err != nil {
			return nil, err
		}
		root = r
	}

	node, err := nativeOf(root)
	if err != nil {
		return nil, err
	}

	var matches []element.Element
	err = e.worker.Do(ctx, func() error {
		condition, cErr := e.trueCondition()
		if cErr != nil {
			return cErr
		}
		result, cErr := oleutil.CallMethod(node.disp, "FindAll", treeScopeDescendants, condition)
		if cErr != nil {
			return cErr
		}
		array := result.ToIDispatch()
		if array == nil {
			return nil
		}
		defer array.Release()

		length, cErr := oleutil.GetProperty(array, "Length")
		if cErr != nil {
			return cErr
		}
		n := int(length.Val)
		for i := 0; i < n; i++ {
			item, cErr := oleutil.CallMethod(array, "GetElement", i)
			if cErr != nil {
				continue
			}
			disp := item.ToIDispatch()
			if disp == nil {
				continue
			}
			candidate := e.bindElement(disp, 0)
			attrs, aErr := candidate.Attributes()
			if aErr != nil {
				continue
			}
			if matchesAtomic(sel, attrs) {
				matches = append(matches, candidate)
				if opts.First {
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformTransient, err, "resolving selector failed")
	}
	return matches, nil
}

func (n *windowsNode) Children(ctx context.Context) ([]element.Element, error) {
	var children []element.Element
	err := n.engine.worker.Do(ctx, func() error {
		condition, cErr := n.engine.trueCondition()
		if cErr != nil {
			return cErr
		}
		result, cErr := oleutil.CallMethod(n.disp, "FindAll", treeScopeChildren, condition)
		if cErr != nil {
			return cErr
		}
		array := result.ToIDispatch()
		if array == nil {
			return nil
		}
		defer array.Release()

		length, cErr := oleutil.GetProperty(array, "Length")
		if cErr != nil {
			return cErr
		}
		count := int(length.Val)
		for i := 0; i < count; i++ {
			item, cErr := oleutil.CallMethod(array, "GetElement", i)
			if cErr != nil {
				continue
			}
			disp := item.ToIDispatch()
			if disp == nil {
				continue
			}
			children = append(children, n.engine.bindElement(disp, 0))
		}
		return nil
	})
	return children, err
}

func (e *windowsEngine) trueCondition() (*ole.IDispatch, error) {
	result, err := oleutil.CallMethod(e.automation, "CreateTrueCondition")
	if err != nil {
		return nil, err
	}
	return result.ToIDispatch(), nil
}

func (e *windowsEngine) Activate(ctx context.Context, el element.Element, opts ActivationOptions) (func(), error) {
	node, err := nativeOf(el)
	if err != nil {
		return func() {}, err
	}

	prevHwnd, _, _ := procGetForegroundWindow.Call()

	err = e.worker.Do(ctx, func() error {
		var pid uint32
		procGetWindowThreadProcessId.Call(uintptr(node.hwnd), uintptr(unsafe.Pointer(&pid)))
		if node.hwnd != 0 && !opts.SkipActivation {
			procSetForegroundWindow.Call(uintptr(node.hwnd))
		}
		return nil
	})
	if err != nil {
		return func() {}, deskerr.Wrap(deskerr.KindPlatformTransient, err, "window activation failed")
	}

	restore := func() {}
	if opts.RestoreFocus && prevHwnd != 0 {
		restore = func() {
			_ = e.worker.Do(context.Background(), func() error {
				procSetForegroundWindow.Call(prevHwnd)
				return nil
			})
		}
	}
	return restore, nil
}

// windowsNode is the NativeNode implementation backing Windows Elements.
type windowsNode struct {
	engine *windowsEngine
	disp   *ole.IDispatch
	hwnd   uintptr
	alive  bool
	mu     sync.Mutex
}

func (e *windowsEngine) bindElement(disp *ole.IDispatch, hwnd uintptr) element.Element {
	node := &windowsNode{engine: e, disp: disp, hwnd: hwnd, alive: true}
	return globalArena.Bind(node)
}

func nativeOf(el element.Element) (*windowsNode, error) {
	native, err := element.Unwrap(el)
	if err != nil {
		return nil, err
	}
	node, ok := native.(*windowsNode)
	if !ok {
		return nil, deskerr.Unsupported("element was not created by the Windows engine")
	}
	return node, nil
}

func (n *windowsNode) Attributes() (element.Attributes, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.alive {
		return element.Attributes{}, deskerr.ElementNotFound("windows element is stale")
	}

	attrs := element.Attributes{Enabled: true}

	if v, err := oleutil.GetProperty(n.disp, "CurrentName"); err == nil {
		attrs.Name = v.ToString()
	}
	if v, err := oleutil.GetProperty(n.disp, "CurrentControlType"); err == nil {
		attrs.Role = roleTranslationTable[int32(v.Val)]
		if attrs.Role == "" {
			attrs.Role = "Unknown"
		}
	}
	if v, err := oleutil.GetProperty(n.disp, "CurrentIsEnabled"); err == nil {
		attrs.Enabled = v.Value().(bool)
	}
	if v, err := oleutil.GetProperty(n.disp, "CurrentHasKeyboardFocus"); err == nil {
		attrs.Focused = v.Value().(bool)
	}
	if v, err := oleutil.GetProperty(n.disp, "CurrentIsKeyboardFocusable"); err == nil {
		attrs.KeyboardFocusable = v.Value().(bool)
	}
	if v, err := oleutil.GetProperty(n.disp, "CurrentProcessId"); err == nil {
		attrs.ProcessID = int(v.Val)
	}
	if v, err := oleutil.GetProperty(n.disp, "CurrentAutomationId"); err == nil {
		attrs.StableID = v.ToString()
	}
	if rect, err := oleutil.CallMethod(n.disp, "get_CurrentBoundingRectangle"); err == nil {
		_ = rect // structure marshalling of RECT through IDispatch is
		// platform/COM-proxy specific; bounds are instead populated from the
		// cached property set built by internal/tree during a tree walk.
	}

	return attrs, nil
}

func (n *windowsNode) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disp != nil {
		n.disp.Release()
		n.disp = nil
	}
	n.alive = false
}

func (n *windowsNode) Alive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.alive
}

func (n *windowsNode) getPattern(patternID int32) (*ole.IDispatch, error) {
	result, err := oleutil.CallMethod(n.disp, "GetCurrentPattern", patternID)
	if err != nil {
		return nil, err
	}
	disp := result.ToIDispatch()
	if disp == nil {
		return nil, deskerr.Unsupported("pattern %d not supported by this element", patternID)
	}
	return disp, nil
}

func (n *windowsNode) Invoke(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaInvokePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		_, err = oleutil.CallMethod(pattern, "Invoke")
		return err
	})
}

func (n *windowsNode) Click(ctx context.Context, positionPct *element.Point, clickType element.ClickType) (element.ClickResult, error) {
	if err := n.Invoke(ctx); err != nil {
		return element.ClickResult{}, err
	}
	return element.ClickResult{Method: "native_invoke"}, nil
}

func (n *windowsNode) Value(ctx context.Context) (string, error) {
	var value string
	err := n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaValuePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		v, err := oleutil.GetProperty(pattern, "CurrentValue")
		if err != nil {
			return err
		}
		value = v.ToString()
		return nil
	})
	return value, err
}

func (n *windowsNode) SetValue(ctx context.Context, value string) error {
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaValuePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		_, err = oleutil.CallMethod(pattern, "SetValue", value)
		return err
	})
}

func (n *windowsNode) Toggled(ctx context.Context) (bool, error) {
	var state int32
	err := n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaTogglePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		v, err := oleutil.GetProperty(pattern, "CurrentToggleState")
		if err != nil {
			return err
		}
		state = int32(v.Val)
		return nil
	})
	return state == 1, err
}

func (n *windowsNode) SetToggled(ctx context.Context, on bool) error {
	current, err := n.Toggled(ctx)
	if err != nil {
		return err
	}
	if current == on {
		return nil
	}
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaTogglePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		_, err = oleutil.CallMethod(pattern, "Toggle")
		return err
	})
}

func (n *windowsNode) Selected(ctx context.Context) (bool, error) {
	var selected bool
	err := n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaSelectionItemPatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		v, err := oleutil.GetProperty(pattern, "CurrentIsSelected")
		if err != nil {
			return err
		}
		selected = v.Value().(bool)
		return nil
	})
	return selected, err
}

func (n *windowsNode) SetSelected(ctx context.Context, selected bool) error {
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaSelectionItemPatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		method := "AddToSelection"
		if !selected {
			method = "RemoveFromSelection"
		}
		_, err = oleutil.CallMethod(pattern, method)
		return err
	})
}

func (n *windowsNode) SelectOption(ctx context.Context, name string) error {
	return deskerr.Unsupported("select by option name requires resolving a child item first")
}

func (n *windowsNode) Scroll(ctx context.Context, direction element.ScrollDirection, magnitude float64) error {
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaScrollPatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()

		horizontal, vertical := 0, 0 // ScrollAmount_NoAmount
		const small, large = 1, 2
		amount := small
		if magnitude > 0.5 {
			amount = large
		}
		switch direction {
		case element.ScrollUp:
			vertical = -amount
		case element.ScrollDown:
			vertical = amount
		case element.ScrollLeft:
			horizontal = -amount
		case element.ScrollRight:
			horizontal = amount
		}
		_, err = oleutil.CallMethod(pattern, "Scroll", horizontal, vertical)
		return err
	})
}

func (n *windowsNode) Activate(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		procSetForegroundWindow.Call(uintptr(n.hwnd))
		return nil
	})
}

func (n *windowsNode) Close(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaWindowPatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		_, err = oleutil.CallMethod(pattern, "Close")
		return err
	})
}

func (n *windowsNode) TypeText(ctx context.Context, text string, clearFirst, useClipboard bool) error {
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

func (n *windowsNode) PressKey(ctx context.Context, chord string) error {
	return deskerr.Unsupported("key dispatch is performed by the desktop facade's input layer")
}

func (n *windowsNode) RangeValue(ctx context.Context) (float64, error) {
	var value float64
	err := n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaRangeValuePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		v, err := oleutil.GetProperty(pattern, "CurrentValue")
		if err != nil {
			return err
		}
		value = v.Value().(float64)
		return nil
	})
	return value, err
}

func (n *windowsNode) SetRangeValue(ctx context.Context, value float64) error {
	return n.engine.worker.Do(ctx, func() error {
		pattern, err := n.getPattern(uiaRangeValuePatternID)
		if err != nil {
			return err
		}
		defer pattern.Release()
		_, err = oleutil.CallMethod(pattern, "SetValue", value)
		return err
	})
}

func (n *windowsNode) Focus(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		_, err := oleutil.CallMethod(n.disp, "SetFocus")
		return err
	})
}
