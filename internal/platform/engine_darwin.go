//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework ApplicationServices -framework Cocoa
#include <ApplicationServices/ApplicationServices.h>
#include <Cocoa/Cocoa.h>

static AXUIElementRef ax_system_wide(void) {
	return AXUIElementCreateSystemWide();
}

static AXUIElementRef ax_application(pid_t pid) {
	return AXUIElementCreateApplication(pid);
}

static CFStringRef ax_string_value(AXUIElementRef element, CFStringRef attribute) {
	CFTypeRef value = NULL;
	AXError err = AXUIElementCopyAttributeValue(element, attribute, &value);
	if (err != kAXErrorSuccess || value == NULL) {
		return NULL;
	}
	if (CFGetTypeID(value) != CFStringGetTypeID()) {
		CFRelease(value);
		return NULL;
	}
	return (CFStringRef)value;
}

static Boolean ax_bool_value(AXUIElementRef element, CFStringRef attribute, Boolean fallback) {
	CFTypeRef value = NULL;
	AXError err = AXUIElementCopyAttributeValue(element, attribute, &value);
	if (err != kAXErrorSuccess || value == NULL) {
		return fallback;
	}
	Boolean result = fallback;
	if (CFGetTypeID(value) == CFBooleanGetTypeID()) {
		result = CFBooleanGetValue((CFBooleanRef)value);
	}
	CFRelease(value);
	return result;
}
*/
import "C"

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// runningApplicationPIDs lists the process IDs of GUI-capable applications.
// NSWorkspace's runningApplications API requires an Objective-C message-send
// bridge beyond what a plain cgo preamble exposes, so this shells out to the
// same "ps" BSD utility the tree extractor's process-name lookups use.
func runningApplicationPIDs(ctx context.Context) ([]int, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axo", "pid=").Output()
	if err != nil {
		return nil, err
	}

	var pids []int
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// macRoleTable maps Accessibility role constants (kAXRoleAttribute values,
// e.g. "AXButton") to the canonical role set shared with the other
// platforms.
var macRoleTable = map[string]string{
	"AXButton": "Button", "AXTextField": "Edit", "AXTextArea": "Edit",
	"AXMenuItem": "MenuItem", "AXMenu": "Menu", "AXMenuBar": "Menu",
	"AXWindow": "Window", "AXSheet": "Dialog", "AXGroup": "Group",
	"AXStaticText": "Text", "AXCheckBox": "CheckBox", "AXRadioButton": "RadioButton",
	"AXComboBox": "ComboBox", "AXList": "ListBox", "AXRow": "Row",
	"AXOutline": "Tree", "AXCell": "Cell", "AXTabGroup": "Tab",
	"AXToolbar": "ToolBar", "AXScrollBar": "ScrollBar", "AXSlider": "Slider",
	"AXProgressIndicator": "ProgressBar", "AXImage": "Image", "AXLink": "Hyperlink",
	"AXTable": "Table", "AXColumn": "Header", "AXSplitter": "Separator",
}

type macEngine struct {
	worker *staWorker
	mu     sync.Mutex
}

// New constructs the macOS Accessibility engine. The caller's process must
// hold the Accessibility permission (System Settings > Privacy & Security >
// Accessibility) or every AX call below fails with kAXErrorAPIDisabled,
// surfaced here as KindPlatformFatal.
func New() (Engine, error) {
	if C.AXIsProcessTrusted() == 0 {
		return nil, deskerr.New(deskerr.KindPlatformFatal, "process is not trusted for Accessibility access")
	}
	return &macEngine{worker: newSTAWorker()}, nil
}

func (e *macEngine) Name() string { return "macos" }
func (e *macEngine) Close() error { return e.worker.Close() }

func (e *macEngine) Root(ctx context.Context) (element.Element, error) {
	var el element.Element
	err := e.worker.Do(ctx, func() error {
		ref := C.ax_system_wide()
		el = e.bindElement(ref, 0)
		return nil
	})
	return el, err
}

func (e *macEngine) Applications(ctx context.Context) ([]element.Element, error) {
	pids, err := runningApplicationPIDs(ctx)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindPlatformTransient, err, "enumerating running applications failed")
	}

	var apps []element.Element
	err = e.worker.Do(ctx, func() error {
		for _, pid := range pids {
			app := C.ax_application(C.pid_t(pid))
			apps = append(apps, e.bindElement(app, pid))
		}
		return nil
	})
	return apps, err
}

func (e *macEngine) FocusedElement(ctx context.Context) (element.Element, error) {
	var el element.Element
	var found bool
	err := e.worker.Do(ctx, func() error {
		sys := C.ax_system_wide()
		attr := cfstr("AXFocusedUIElement")
		defer C.CFRelease(C.CFTypeRef(attr))

		var value C.CFTypeRef
		axErr := C.AXUIElementCopyAttributeValue(sys, attr, &value)
		if axErr != C.kAXErrorSuccess || value == nil {
			return nil
		}
		found = true
		el = e.bindElement(C.AXUIElementRef(value), 0)
		return nil
	})
	if err != nil {
		return element.Element{}, err
	}
	if !found {
		return element.Element{}, deskerr.ElementNotFound("no element currently has keyboard focus")
	}
	return el, nil
}

func (e *macEngine) Resolve(ctx context.Context, sel selector.Selector, opts ResolveOptions) ([]element.Element, error) {
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
	node, ok := native.(*macNode)
	if !ok {
		return nil, deskerr.Unsupported("element was not created by the macOS engine")
	}

	var matches []element.Element
	err = e.worker.Do(ctx, func() error {
		e.walk(node.ref, func(ref C.AXUIElementRef) bool {
			candidate := e.bindElement(ref, 0)
			attrs, aErr := candidate.Attributes()
			if aErr == nil && matchesAtomicMac(sel, attrs) {
				matches = append(matches, candidate)
				return !opts.First
			}
			return true
		})
		return nil
	})
	return matches, err
}

// walk performs a depth-first traversal over AXChildren, invoking visit on
// every node; visit returns false to stop early (used for opts.First).
func (e *macEngine) walk(ref C.AXUIElementRef, visit func(C.AXUIElementRef) bool) bool {
	if !visit(ref) {
		return false
	}

	attr := cfstr("AXChildren")
	defer C.CFRelease(C.CFTypeRef(attr))

	var value C.CFTypeRef
	axErr := C.AXUIElementCopyAttributeValue(ref, attr, &value)
	if axErr != C.kAXErrorSuccess || value == nil {
		return true
	}
	defer C.CFRelease(value)

	arr := C.CFArrayRef(value)
	count := int(C.CFArrayGetCount(arr))
	for i := 0; i < count; i++ {
		child := C.AXUIElementRef(C.CFArrayGetValueAtIndex(arr, C.CFIndex(i)))
		if !e.walk(child, visit) {
			return false
		}
	}
	return true
}

func matchesAtomicMac(sel selector.Selector, attrs element.Attributes) bool {
	return matchesAtomic(sel, attrs)
}

func (e *macEngine) Activate(ctx context.Context, el element.Element, opts ActivationOptions) (func(), error) {
	native, err := element.Unwrap(el)
	if err != nil {
		return func() {}, err
	}
	node, ok := native.(*macNode)
	if !ok {
		return func() {}, deskerr.Unsupported("element was not created by the macOS engine")
	}

	err = e.worker.Do(ctx, func() error {
		if opts.SkipActivation {
			return nil
		}
		attr := cfstr("AXFrontmost")
		defer C.CFRelease(C.CFTypeRef(attr))
		app := C.ax_application(C.pid_t(node.pid))
		C.AXUIElementSetAttributeValue(app, attr, C.CFTypeRef(C.kCFBooleanTrue))
		return nil
	})
	return func() {}, err
}

func cfstr(s string) C.CFStringRef {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return C.CFStringCreateWithCString(C.kCFAllocatorDefault, cs, C.kCFStringEncodingUTF8)
}

type macNode struct {
	engine *macEngine
	ref    C.AXUIElementRef
	pid    int
	alive  bool
	mu     sync.Mutex
}

func (e *macEngine) bindElement(ref C.AXUIElementRef, pid int) element.Element {
	node := &macNode{engine: e, ref: ref, pid: pid, alive: true}
	return globalArena.Bind(node)
}

func (n *macNode) Attributes() (element.Attributes, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.alive {
		return element.Attributes{}, deskerr.ElementNotFound("macOS element is stale")
	}

	attrs := element.Attributes{ProcessID: n.pid}

	if role := n.stringAttr("AXRole"); role != "" {
		if canonical, ok := macRoleTable[role]; ok {
			attrs.Role = canonical
		} else {
			attrs.Role = "Unknown"
		}
	}
	attrs.Name = n.stringAttr("AXTitle")
	if attrs.Name == "" {
		attrs.Name = n.stringAttr("AXDescription")
	}
	attrs.Value = n.stringAttr("AXValue")
	attrs.Enabled = n.boolAttr("AXEnabled", true)
	attrs.Focused = n.boolAttr("AXFocused", false)

	return attrs, nil
}

func (n *macNode) stringAttr(name string) string {
	attr := cfstr(name)
	defer C.CFRelease(C.CFTypeRef(attr))
	cfs := C.ax_string_value(n.ref, attr)
	if cfs == nil {
		return ""
	}
	defer C.CFRelease(C.CFTypeRef(cfs))
	return cfStringToGo(cfs)
}

func (n *macNode) boolAttr(name string, fallback bool) bool {
	attr := cfstr(name)
	defer C.CFRelease(C.CFTypeRef(attr))
	cFallback := C.Boolean(0)
	if fallback {
		cFallback = 1
	}
	return bool(C.ax_bool_value(n.ref, attr, cFallback))
}

func cfStringToGo(cfs C.CFStringRef) string {
	length := C.CFStringGetLength(cfs)
	maxSize := C.CFStringGetMaximumSizeForEncoding(length, C.kCFStringEncodingUTF8) + 1
	buf := make([]byte, int(maxSize))
	ok := C.CFStringGetCString(cfs, (*C.char)(unsafe.Pointer(&buf[0])), maxSize, C.kCFStringEncodingUTF8)
	if ok == 0 {
		return ""
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func (n *macNode) Children(ctx context.Context) ([]element.Element, error) {
	var children []element.Element
	err := n.engine.worker.Do(ctx, func() error {
		attr := cfstr("AXChildren")
		defer C.CFRelease(C.CFTypeRef(attr))

		var value C.CFTypeRef
		axErr := C.AXUIElementCopyAttributeValue(n.ref, attr, &value)
		if axErr != C.kAXErrorSuccess || value == nil {
			return nil
		}
		defer C.CFRelease(value)

		arr := C.CFArrayRef(value)
		count := int(C.CFArrayGetCount(arr))
		for i := 0; i < count; i++ {
			child := C.AXUIElementRef(C.CFArrayGetValueAtIndex(arr, C.CFIndex(i)))
			children = append(children, n.engine.bindElement(child, n.pid))
		}
		return nil
	})
	return children, err
}

func (n *macNode) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ref != 0 {
		C.CFRelease(C.CFTypeRef(n.ref))
		n.ref = 0
	}
	n.alive = false
}

func (n *macNode) Alive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.alive
}

func (n *macNode) Invoke(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		action := cfstr("AXPress")
		defer C.CFRelease(C.CFTypeRef(action))
		axErr := C.AXUIElementPerformAction(n.ref, action)
		if axErr != C.kAXErrorSuccess {
			return deskerr.New(deskerr.KindPlatformTransient, "AXPress failed: %d", int(axErr))
		}
		return nil
	})
}

func (n *macNode) Click(ctx context.Context, positionPct *element.Point, clickType element.ClickType) (element.ClickResult, error) {
	if err := n.Invoke(ctx); err != nil {
		return element.ClickResult{}, err
	}
	return element.ClickResult{Method: "native_invoke"}, nil
}

func (n *macNode) Value(ctx context.Context) (string, error) {
	return n.stringAttr("AXValue"), nil
}

func (n *macNode) SetValue(ctx context.Context, value string) error {
	return n.engine.worker.Do(ctx, func() error {
		attr := cfstr("AXValue")
		defer C.CFRelease(C.CFTypeRef(attr))
		cfv := cfstr(value)
		defer C.CFRelease(C.CFTypeRef(cfv))
		axErr := C.AXUIElementSetAttributeValue(n.ref, attr, C.CFTypeRef(cfv))
		if axErr != C.kAXErrorSuccess {
			return deskerr.New(deskerr.KindPlatformTransient, "AXValue set failed: %d", int(axErr))
		}
		return nil
	})
}

func (n *macNode) Focus(ctx context.Context) error {
	return n.engine.worker.Do(ctx, func() error {
		attr := cfstr("AXFocused")
		defer C.CFRelease(C.CFTypeRef(attr))
		axErr := C.AXUIElementSetAttributeValue(n.ref, attr, C.CFTypeRef(C.kCFBooleanTrue))
		if axErr != C.kAXErrorSuccess {
			return deskerr.New(deskerr.KindPlatformTransient, "AXFocused set failed: %d", int(axErr))
		}
		return nil
	})
}
