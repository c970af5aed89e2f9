// Package element implements the opaque, refcounted handle over a platform
// accessibility node (L2). A platform engine (internal/platform) resolves
// selectors to Elements; the rest of the core only ever touches the Element
// handle, never the native node underneath it.
package element

import "github.com/haasonsaas/deskmcp/internal/deskerr"

// Attributes mirrors the optional accessibility properties a node may carry.
// Only Role is ever required; every other field is a zero value when the
// platform engine did not populate it.
type Attributes struct {
	Role                string
	Name                string
	Value               string
	Description         string
	Label               string
	Bounds              Bounds
	HasBounds           bool
	Enabled             bool
	Focused             bool
	KeyboardFocusable   bool
	Toggled             bool
	Selected            bool
	ApplicationName     string
	WindowTitle         string
	URL                 string
	ProcessID           int
	ProcessName         string
	StableID            string
}

// Bounds is a screen-pixel rectangle.
type Bounds struct {
	X, Y, W, H int
}

// NativeNode is the per-platform accessibility node a platform engine binds
// an Element to. Engines implement this once per OS (internal/platform); the
// core never depends on the concrete type, only on this interface and the
// capability interfaces in capabilities.go that a NativeNode may additionally
// satisfy.
type NativeNode interface {
	// Attributes reads the current property snapshot for this node. It may
	// issue a live accessibility call unless the caller is inside a tree
	// walk using a pre-built cache (internal/tree).
	Attributes() (Attributes, error)

	// Release drops the platform-native reference held by this node. Called
	// exactly once, when the owning Element's refcount reaches zero.
	Release()

	// Alive reports whether the backing UI object still exists. A false
	// result means any further call on this node, or any capability derived
	// from it, must fail with deskerr.KindElementNotFound.
	Alive() bool
}

// Element is an opaque, refcounted handle to one NativeNode. It is cheap to
// copy: copies share the same arena slot and increment/decrement a single
// refcount. Children obtained from an Element hold independent handles with
// independent lifetimes (see internal/element/arena.go and spec §9 on
// arena-based ownership).
type Element struct {
	arena *Arena
	slot  int
	gen   uint64
}

// IsZero reports whether e is the zero-value Element (no backing node).
func (e Element) IsZero() bool { return e.arena == nil }

// Attributes reads the element's current attribute snapshot. Returns
// deskerr.KindElementNotFound if the handle is stale.
func (e Element) Attributes() (Attributes, error) {
	node, err := e.native()
	if err != nil {
		return Attributes{}, err
	}
	return node.Attributes()
}

// Alive reports whether the handle still resolves to a live UI node.
func (e Element) Alive() bool {
	node, err := e.native()
	if err != nil {
		return false
	}
	return node.Alive()
}

// Retain increments the handle's refcount and returns a new Element sharing
// the same underlying node. Use when a handle must outlive the scope that
// obtained it (e.g. stashed in a workflow variable).
func (e Element) Retain() Element {
	if e.arena != nil {
		e.arena.retain(e.slot, e.gen)
	}
	return e
}

// Release decrements the handle's refcount, freeing the native node when it
// reaches zero. Safe to call multiple times; only the first call past zero
// has an effect.
func (e Element) Release() {
	if e.arena != nil {
		e.arena.release(e.slot, e.gen)
	}
}

// native resolves the handle to its backing NativeNode, failing if the
// handle has been released or the arena's generation has moved past it.
func (e Element) native() (NativeNode, error) {
	if e.arena == nil {
		return nil, deskerr.ElementNotFound("element handle is zero-valued")
	}
	node, ok := e.arena.lookup(e.slot, e.gen)
	if !ok {
		return nil, deskerr.ElementNotFound("element handle is stale")
	}
	return node, nil
}

// Unwrap returns the NativeNode backing e. It exists for platform engines
// (internal/platform) that need their own concrete node type back — e.g. to
// walk descendants during selector resolution — and is not meant for use
// outside a platform engine: every other consumer should go through the
// capability methods below.
func Unwrap(e Element) (NativeNode, error) {
	return e.native()
}

// capability type-asserts the element's native node against a capability
// interface, failing with KindUnsupported when the node does not implement
// it — used by Invoke, Value, Toggle, etc. in capabilities.go.
func capability[C any](e Element) (C, error) {
	var zero C
	node, err := e.native()
	if err != nil {
		return zero, err
	}
	cap, ok := any(node).(C)
	if !ok {
		return zero, deskerr.Unsupported("element does not support this capability")
	}
	return cap, nil
}
