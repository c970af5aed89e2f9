// Package tree extracts a serialisable UI tree from a root element with
// one-shot-per-node property caching, depth/timeout budgets, and selector
// synthesis, matching the batched-cache extraction contract that makes
// large accessibility trees affordable to walk.
package tree

import (
	"context"
	"runtime"
	"time"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// CacheMissRecorder is the narrow metrics surface Extract needs; satisfied
// structurally by *observability.Metrics without this package importing it.
type CacheMissRecorder interface {
	RecordTreeCacheMiss(reason string)
}

// UINode is the serialisable tree node emitted by a walk.
type UINode struct {
	ID                 string            `json:"id,omitempty"`
	Role               string            `json:"role"`
	Name               string            `json:"name,omitempty"`
	Bounds             *element.Bounds   `json:"bounds,omitempty"`
	Value              string            `json:"value,omitempty"`
	Description        string            `json:"description,omitempty"`
	Label              string            `json:"label,omitempty"`
	Enabled            bool              `json:"enabled,omitempty"`
	IsKeyboardFocusable bool             `json:"is_keyboard_focusable,omitempty"`
	IsFocused          bool              `json:"is_focused,omitempty"`
	IsToggled          bool              `json:"is_toggled,omitempty"`
	IsSelected         bool              `json:"is_selected,omitempty"`
	Truncated          bool              `json:"truncated,omitempty"`
	Selector           string            `json:"selector,omitempty"`
	Children           []*UINode         `json:"children,omitempty"`
}

// IndexedNode is the per-index entry in WindowTreeResult.IndexToBounds.
type IndexedNode struct {
	Role     string
	Name     string
	Bounds   element.Bounds
	Selector string
}

// PartialTreeDiagnostic records one subtree whose children could not be
// retrieved within budget, so the caller can tell a genuinely childless node
// apart from one truncated by a live-fetch failure or timeout.
type PartialTreeDiagnostic struct {
	Selector string `json:"selector"`
	Role     string `json:"role"`
	Reason   string `json:"reason"`
}

// WindowTreeResult is the output of a single Extract call.
type WindowTreeResult struct {
	Tree          *UINode
	PID           int
	IsBrowser     bool
	ElementCount  int
	IndexToBounds map[int]IndexedNode
	Formatted     string

	// Diagnostics lists every subtree Extract had to give up on (spec §4.3
	// partial-tree reporting): children fetch timed out or the live
	// accessibility call failed. Empty when the walk completed cleanly.
	Diagnostics []PartialTreeDiagnostic
}

// ExtractOptions controls a single Extract call.
type ExtractOptions struct {
	// MaxDepth bounds how many levels are descended. nil means unlimited.
	MaxDepth *int

	// IncludeAllBounds includes bounds for every node, not just
	// keyboard-focusable ones.
	IncludeAllBounds bool

	// YieldEvery is how many nodes are visited between cooperative
	// scheduler yields. Zero uses the default of 50.
	YieldEvery int

	// TimeoutPerOperation bounds how long a single subtree fetch (a
	// Children() call) may take; on expiry that subtree is skipped and
	// counted as partial. Zero means no per-operation timeout.
	TimeoutPerOperation time.Duration

	// Format, when true, also populates WindowTreeResult.Formatted via
	// the compact formatter (§4.6).
	Format bool

	// Metrics, when set, receives a cache_miss counter event for every
	// subtree whose children are fetched live after the walk could not
	// serve them from the already-read property set (spec §4.3). Nil
	// disables the counter without otherwise changing behavior.
	Metrics CacheMissRecorder
}

var browserProcessNames = map[string]bool{
	"chrome.exe": true, "msedge.exe": true, "firefox.exe": true,
	"chrome": true, "Google Chrome": true, "firefox": true, "Safari": true,
	"msedge": true,
}

// Extract walks the subtree rooted at root, building a UINode tree plus the
// index_to_bounds map used by index-based click flows (spec §4.3/§4.6).
func Extract(ctx context.Context, root element.Element, opts ExtractOptions) (WindowTreeResult, error) {
	yieldEvery := opts.YieldEvery
	if yieldEvery <= 0 {
		yieldEvery = 50
	}

	w := &walker{
		opts:          opts,
		yieldEvery:    yieldEvery,
		indexToBounds: make(map[int]IndexedNode),
	}

	rootAttrs, err := root.Attributes()
	if err != nil {
		return WindowTreeResult{}, deskerr.Wrap(deskerr.KindPlatformTransient, err, "reading root attributes failed")
	}

	tree := w.walkNode(ctx, root, rootAttrs, nil, 0)

	result := WindowTreeResult{
		Tree:          tree,
		PID:           rootAttrs.ProcessID,
		IsBrowser:     browserProcessNames[rootAttrs.ProcessName],
		ElementCount:  w.visited,
		IndexToBounds: w.indexToBounds,
		Diagnostics:   w.diagnostics,
	}
	if opts.Format {
		result.Formatted = Format(tree, result.IndexToBounds)
	}
	return result, nil
}

type walker struct {
	opts          ExtractOptions
	yieldEvery    int
	visited       int
	indexToBounds map[int]IndexedNode
	diagnostics   []PartialTreeDiagnostic
}

// walk performs the depth-first pre-order traversal. ancestorSelector is the
// accumulated synthesised selector path above this node.
func (w *walker) walk(ctx context.Context, el element.Element, ancestorSelector []selector.Selector, depth int) *UINode {
	if ctx.Err() != nil {
		return nil
	}

	attrs, err := el.Attributes()
	if err != nil {
		// An unreadable node does not abort the whole walk; it is
		// simply omitted (spec §4.3 failure isolation).
		return nil
	}
	return w.walkNode(ctx, el, attrs, ancestorSelector, depth)
}

// walkNode builds the UINode for el given its already-fetched attrs — the
// single read per node the batched-cache contract requires — then recurses
// into children via walk, which performs their own (also single) reads.
func (w *walker) walkNode(ctx context.Context, el element.Element, attrs element.Attributes, ancestorSelector []selector.Selector, depth int) *UINode {
	w.visited++
	if w.visited%w.yieldEvery == 0 {
		runtime.Gosched()
	}

	nodeSel := append(append([]selector.Selector{}, ancestorSelector...), roleSelector(attrs))

	node := &UINode{
		Role:                attrs.Role,
		Name:                attrs.Name,
		Value:               attrs.Value,
		Description:         attrs.Description,
		Label:               attrs.Label,
		Enabled:             attrs.Enabled,
		IsKeyboardFocusable: attrs.KeyboardFocusable,
		IsFocused:           attrs.Focused,
		IsToggled:           attrs.Toggled,
		IsSelected:          attrs.Selected,
		ID:                  attrs.StableID,
		Selector:            renderChain(nodeSel),
	}

	includeBounds := attrs.HasBounds && attrs.Bounds.W > 0 && attrs.Bounds.H > 0 &&
		(w.opts.IncludeAllBounds || attrs.KeyboardFocusable)
	if includeBounds {
		bounds := attrs.Bounds
		node.Bounds = &bounds
		w.indexToBounds[len(w.indexToBounds)+1] = IndexedNode{
			Role: attrs.Role, Name: attrs.Name, Bounds: bounds, Selector: node.Selector,
		}
	}

	if w.opts.MaxDepth != nil && depth >= *w.opts.MaxDepth {
		node.Truncated = true
		return node
	}

	children, err := w.children(ctx, el)
	if err != nil {
		// Subtree fetch failed or timed out; the node itself is still
		// emitted without children (spec §4.3 failure isolation / partial
		// tree on timeout), but the loss is recorded as a diagnostic rather
		// than silently swallowed.
		reason := "fetch_error"
		if deskerr.KindOf(err) == deskerr.KindTimeout {
			reason = "timeout"
		}
		w.diagnostics = append(w.diagnostics, PartialTreeDiagnostic{
			Selector: node.Selector,
			Role:     node.Role,
			Reason:   reason,
		})
		if w.opts.Metrics != nil {
			w.opts.Metrics.RecordTreeCacheMiss(reason)
		}
		return node
	}

	for _, child := range children {
		if childNode := w.walk(ctx, child, nodeSel, depth+1); childNode != nil {
			node.Children = append(node.Children, childNode)
		}
	}
	return node
}

func (w *walker) children(ctx context.Context, el element.Element) ([]element.Element, error) {
	if w.opts.TimeoutPerOperation <= 0 {
		return el.Children(ctx)
	}
	childCtx, cancel := context.WithTimeout(ctx, w.opts.TimeoutPerOperation)
	defer cancel()
	children, err := el.Children(childCtx)
	if err != nil && childCtx.Err() != nil {
		return nil, deskerr.Wrap(deskerr.KindTimeout, err, "subtree fetch exceeded per-operation timeout")
	}
	return children, err
}

func roleSelector(attrs element.Attributes) selector.Selector {
	return selector.Role(attrs.Role, attrs.Name)
}

func renderChain(segs []selector.Selector) string {
	if len(segs) == 0 {
		return ""
	}
	if len(segs) == 1 {
		return segs[0].String()
	}
	return selector.ChainOf(segs...).String()
}
