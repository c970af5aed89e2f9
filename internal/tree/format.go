package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders tree as the deterministic compact view (spec §4.6): one
// element per line, 2-space indent, fixed attribute order, no element ids.
// indexToBounds is overwritten in place to match the line-order index this
// function assigns, so the textual view and index_to_bounds always agree.
func Format(root *UINode, indexToBounds map[int]IndexedNode) string {
	for k := range indexToBounds {
		delete(indexToBounds, k)
	}
	var b strings.Builder
	index := 0
	formatNode(&b, root, 0, &index, indexToBounds)
	return b.String()
}

func formatNode(b *strings.Builder, n *UINode, depth int, index *int, indexToBounds map[int]IndexedNode) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("- [")
	b.WriteString(n.Role)
	b.WriteString("]")
	if n.Name != "" {
		b.WriteString(" ")
		b.WriteString(n.Name)
	}

	attrs := formatAttributes(n)
	if attrs != "" {
		b.WriteString(" (")
		b.WriteString(attrs)
		b.WriteString(")")
	}
	b.WriteString("\n")

	if n.Bounds != nil {
		*index++
		indexToBounds[*index] = IndexedNode{Role: n.Role, Name: n.Name, Bounds: *n.Bounds, Selector: n.Selector}
	}

	for _, child := range n.Children {
		formatNode(b, child, depth+1, index, indexToBounds)
	}
}

// formatAttributes renders the fixed-order parenthesised attribute list:
// text, bounds, disabled, focused, focusable, selected, toggled, value, N
// children.
func formatAttributes(n *UINode) string {
	var parts []string

	if n.Description != "" {
		parts = append(parts, "text: "+n.Description)
	}
	if n.Bounds != nil {
		parts = append(parts, fmt.Sprintf("bounds: [%d,%d,%d,%d]", n.Bounds.X, n.Bounds.Y, n.Bounds.W, n.Bounds.H))
	}
	if !n.Enabled {
		parts = append(parts, "disabled")
	}
	if n.IsFocused {
		parts = append(parts, "focused")
	}
	if n.IsKeyboardFocusable {
		parts = append(parts, "focusable")
	}
	if n.IsSelected {
		parts = append(parts, "selected")
	}
	if n.IsToggled {
		parts = append(parts, "toggled")
	}
	if n.Value != "" {
		parts = append(parts, "value: "+n.Value)
	}
	if len(n.Children) > 0 {
		parts = append(parts, strconv.Itoa(len(n.Children))+" children")
	}
	return strings.Join(parts, ", ")
}
