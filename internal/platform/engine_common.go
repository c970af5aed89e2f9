package platform

import (
	"strings"

	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// globalArena backs every Element created by any platform engine in this
// process. A single process-wide engine instance owns one arena for its
// lifetime; callers needing isolated lifetime scoping (e.g. per workflow
// execution) construct their own element.Arena and rebind through Resolve
// results as needed.
var globalArena = element.NewArena()

// matchesAtomic reports whether attrs satisfies the leaf matchers a
// platform engine can evaluate directly (role/name/id/text/description).
// Composite forms (chain, nth, has, spatial, filter) are the locator's
// responsibility once candidates are gathered.
func matchesAtomic(sel selector.Selector, attrs element.Attributes) bool {
	switch sel.Kind {
	case selector.KindRole:
		if sel.Role != "" && !strings.EqualFold(sel.Role, attrs.Role) {
			return false
		}
		if sel.Name != "" && !strings.Contains(strings.ToLower(attrs.Name), strings.ToLower(sel.Name)) {
			return false
		}
		return true
	case selector.KindName:
		return strings.Contains(strings.ToLower(attrs.Name), strings.ToLower(sel.Name))
	case selector.KindID:
		return attrs.StableID == sel.Value
	case selector.KindText:
		return strings.Contains(strings.ToLower(attrs.Value), strings.ToLower(sel.Value))
	case selector.KindDescription:
		return strings.Contains(strings.ToLower(attrs.Description), strings.ToLower(sel.Value))
	case selector.KindVisible:
		return attrs.HasBounds == sel.Bool
	case selector.KindEnabled:
		return attrs.Enabled == sel.Bool
	case selector.KindAnd:
		for _, c := range sel.Chain {
			if !matchesAtomic(c, attrs) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
