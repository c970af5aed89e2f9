// Package platform implements the per-OS accessibility engines (L3): the
// component that owns the automation singleton for its platform, enumerates
// applications and windows, resolves selectors to elements, and performs
// element actions through the capability pattern (internal/element).
//
// Concrete engines live in build-tagged files: engine_windows.go (Windows UI
// Automation via go-ole), engine_darwin.go (macOS Accessibility via cgo),
// engine_linux.go (AT-SPI via godbus). This file holds the platform-neutral
// contract and helpers shared by all three.
package platform

import (
	"context"
	"time"

	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// ApplicationInfo describes one running application's top-level window for
// enumeration purposes, before it is resolved into a full Element.
type ApplicationInfo struct {
	Name      string
	ProcessID int
	Title     string
}

// ResolveOptions bounds a selector resolution call.
type ResolveOptions struct {
	// Under is the element to search beneath. A zero Element means search
	// from the desktop root.
	Under element.Element
	// Timeout bounds the whole resolution, including any retries the
	// engine itself performs at the platform-call level (distinct from the
	// locator's own retry loop in internal/locator).
	Timeout time.Duration
	// First, when true, stops at the first match in tree order instead of
	// collecting every match.
	First bool
}

// ActivationOptions controls the focus/window-activation policy applied
// before an action runs (spec §4.2: save state → activate → act → restore).
type ActivationOptions struct {
	// SkipActivation opts out of activating the containing window before
	// acting.
	SkipActivation bool
	// RestoreFocus requests that the previous foreground window and caret
	// position be restored after the action completes.
	RestoreFocus bool
}

// Engine is the uniform contract every platform implementation satisfies.
// Engines are safe for concurrent use by multiple goroutines; platform APIs
// that require single-threaded apartment semantics are serialised onto a
// dedicated worker internally (see worker.go).
type Engine interface {
	// Applications returns the current top-level element for every visible
	// process.
	Applications(ctx context.Context) ([]element.Element, error)

	// FocusedElement returns the element currently owning keyboard focus.
	// Fails with deskerr.KindElementNotFound if nothing is focused.
	FocusedElement(ctx context.Context) (element.Element, error)

	// Root returns the desktop root element.
	Root(ctx context.Context) (element.Element, error)

	// Resolve searches for sel under opts.Under (or the desktop root),
	// returning every match in tree order. When opts.First is set the
	// engine may stop early at the first match.
	Resolve(ctx context.Context, sel selector.Selector, opts ResolveOptions) ([]element.Element, error)

	// Activate brings el's containing window to the foreground per
	// ActivationOptions, returning a restore function that undoes the
	// activation (a no-op if RestoreFocus was not requested).
	Activate(ctx context.Context, el element.Element, opts ActivationOptions) (restore func(), err error)

	// Name identifies the platform this engine implements: "windows",
	// "macos", or "linux".
	Name() string

	// Close releases the automation singleton and any worker resources.
	Close() error
}

// New constructs the Engine implementation for the running GOOS. Each
// build-tagged engine_<os>.go file defines exactly one New; the active
// build tag selects which compiles into the binary.
