// Package selector parses and represents the textual selector language used
// to address elements in a UI tree: atomic matchers, composites, and chains.
package selector

import "fmt"

// Kind discriminates the variant of a Selector node.
type Kind int

const (
	KindRole Kind = iota
	KindName
	KindID
	KindText
	KindDescription
	KindNativeID
	KindPath
	KindAttributes
	KindChain
	KindNth
	KindHas
	KindRightOf
	KindLeftOf
	KindAbove
	KindBelow
	KindNear
	KindVisible
	KindEnabled

	// KindAnd is a conjunction of heterogeneous atomic matchers within one
	// segment (e.g. "role:Button && enabled:true"). Segments that reduce to
	// a single role+optional-name pair collapse to KindRole instead, per
	// the selector round-trip invariant.
	KindAnd
)

// Selector is a typed query over the accessibility tree. It is a closed sum
// type: the Kind field determines which of the remaining fields are valid.
type Selector struct {
	Kind Kind

	// KindRole
	Role string
	Name string // also used standalone by KindName

	// KindID / KindText / KindDescription / KindNativeID / KindPath
	Value string

	// KindAttributes
	Attributes map[string]string

	// KindChain
	Chain []Selector

	// KindNth
	Index int

	// KindHas / KindRightOf / KindLeftOf / KindAbove / KindBelow / KindNear
	Base   *Selector
	Target *Selector

	// KindVisible / KindEnabled
	Bool bool
}

// Role builds an atomic role/name matcher. name may be empty.
func Role(role, name string) Selector {
	return Selector{Kind: KindRole, Role: canonicalRole(role), Name: name}
}

// Name builds a standalone name matcher.
func Name(name string) Selector { return Selector{Kind: KindName, Name: name} }

// ID builds a stable-id matcher.
func ID(id string) Selector { return Selector{Kind: KindID, Value: id} }

// Text builds a text-content matcher.
func Text(text string) Selector { return Selector{Kind: KindText, Value: text} }

// Description builds a description matcher.
func Description(desc string) Selector { return Selector{Kind: KindDescription, Value: desc} }

// NativeID builds a platform automation-id matcher.
func NativeID(id string) Selector { return Selector{Kind: KindNativeID, Value: id} }

// Path builds an ordered ancestor-path matcher of opaque, platform-specific tokens.
func Path(path string) Selector { return Selector{Kind: KindPath, Value: path} }

// Attrs builds a conjunction of property-equality matchers.
func Attrs(attrs map[string]string) Selector {
	return Selector{Kind: KindAttributes, Attributes: attrs}
}

// ChainOf builds a descendant chain; each stage is resolved under the
// previous match.
func ChainOf(stages ...Selector) Selector {
	return Selector{Kind: KindChain, Chain: stages}
}

// NthOf builds a positional pick over matches of base.
func NthOf(base Selector, index int) Selector {
	return Selector{Kind: KindNth, Base: &base, Index: index}
}

// HasOf builds a predicate: base matches only if a descendant matches target.
func HasOf(base, target Selector) Selector {
	return Selector{Kind: KindHas, Base: &base, Target: &target}
}

func spatial(kind Kind, base, target Selector) Selector {
	return Selector{Kind: kind, Base: &base, Target: &target}
}

func RightOfOf(base, target Selector) Selector { return spatial(KindRightOf, base, target) }
func LeftOfOf(base, target Selector) Selector  { return spatial(KindLeftOf, base, target) }
func AboveOf(base, target Selector) Selector   { return spatial(KindAbove, base, target) }
func BelowOf(base, target Selector) Selector   { return spatial(KindBelow, base, target) }
func NearOf(base, target Selector) Selector    { return spatial(KindNear, base, target) }

// VisibleIs builds a visibility state filter.
func VisibleIs(visible bool) Selector { return Selector{Kind: KindVisible, Bool: visible} }

// EnabledIs builds an enabled-state filter.
func EnabledIs(enabled bool) Selector { return Selector{Kind: KindEnabled, Bool: enabled} }

// Equal reports whether two selectors are structurally identical after
// canonicalization. Used by the round-trip test: parse(render(s)) == s.
func Equal(a, b Selector) bool {
	return Canonicalize(a).String() == Canonicalize(b).String()
}

func (k Kind) String() string {
	switch k {
	case KindRole:
		return "role"
	case KindName:
		return "name"
	case KindID:
		return "id"
	case KindText:
		return "text"
	case KindDescription:
		return "description"
	case KindNativeID:
		return "nativeid"
	case KindPath:
		return "path"
	case KindAttributes:
		return "attr"
	case KindChain:
		return "chain"
	case KindNth:
		return "nth"
	case KindHas:
		return "has"
	case KindRightOf:
		return "rightof"
	case KindLeftOf:
		return "leftof"
	case KindAbove:
		return "above"
	case KindBelow:
		return "below"
	case KindNear:
		return "near"
	case KindVisible:
		return "visible"
	case KindEnabled:
		return "enabled"
	case KindAnd:
		return "and"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
