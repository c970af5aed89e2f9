// Package overlay is the process-wide action overlay: a transient status
// indicator shown while a tool action (click, type, press_key, ...) runs
// against an element, so an operator watching the screen can see what the
// server is about to touch before it touches it. One State is constructed
// alongside a Desktop's platform engine and torn down with it; every action
// across every tool call shares it, which is why it is mutex-guarded rather
// than owned per-call.
package overlay

import (
	"sync"
	"time"

	"github.com/haasonsaas/deskmcp/internal/cache"
)

// changeCooldown is the minimum time between overlay state changes, so a
// rapid sequence of actions (execute_sequence, a workflow step loop) does not
// flash the overlay on and off faster than a human can read it.
const changeCooldown = 100 * time.Millisecond

// State is the shared overlay state one Desktop owns for its lifetime.
// Enabled defaults to whatever PlatformConfig.HighlightOverlay selected at
// construction and can be flipped at runtime with SetEnabled.
type State struct {
	mu         sync.Mutex
	enabled    bool
	visible    bool
	message    string
	subMessage string
	lastChange time.Time

	// dedupe suppresses a second Show for the same window+element inside
	// the cooldown window even when lastChange has already rolled over
	// for an unrelated element, so a redraw storm across many elements
	// can't starve any single one's "settled" display time.
	dedupe *cache.DedupeCache
}

// NewState constructs an overlay State. enabled mirrors
// PlatformConfig.HighlightOverlay; a disabled State makes every Show a no-op
// without tearing down the caller's control flow.
func NewState(enabled bool) *State {
	return &State{
		enabled: enabled,
		dedupe:  cache.NewDedupeCache(cache.DedupeCacheOptions{TTL: changeCooldown, MaxSize: 256}),
	}
}

// SetEnabled toggles the overlay at runtime. Disabling hides any overlay
// currently showing.
func (s *State) SetEnabled(enabled bool) {
	s.mu.Lock()
	was := s.enabled
	s.enabled = enabled
	s.mu.Unlock()
	if was && !enabled {
		s.Hide()
	}
}

// Enabled reports whether the overlay is currently active.
func (s *State) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Show displays message/subMessage for the element identified by
// windowID/elementID, returning false without changing any state if the
// overlay is disabled, the global anti-spam cooldown is active, or this
// exact window+element was shown too recently. windowID or elementID may be
// empty; an empty elementID disables the per-element dedupe check.
func (s *State) Show(windowID, elementID, message, subMessage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return false
	}
	if !s.lastChange.IsZero() && time.Since(s.lastChange) < changeCooldown {
		return false
	}
	if key := cache.OverlayDedupeKey(windowID, elementID); key != "" && s.dedupe.Check(key) {
		return false
	}

	s.lastChange = time.Now()
	s.visible = true
	s.message = message
	s.subMessage = subMessage
	return true
}

// Hide clears the overlay's visible state. Safe to call when nothing is
// showing.
func (s *State) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
	s.message = ""
	s.subMessage = ""
}

// Snapshot returns the overlay's current visibility and message, for a
// platform-specific renderer (or a test) to read without reaching into the
// unexported fields directly.
func (s *State) Snapshot() (visible bool, message, subMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible, s.message, s.subMessage
}

// Guard shows the overlay for one action against one element and returns the
// function that hides it again, mirroring the save-state/activate/act/restore
// shape actions already follow: `defer overlayState.Guard(...)()`.
func (s *State) Guard(windowID, elementID, action string) func() {
	s.Show(windowID, elementID, action, elementID)
	return s.Hide
}
