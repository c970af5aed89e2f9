package selector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// String renders a Selector back to its canonical textual form. Round-trip
// stability (Parse(s.String()) producing an equal tree) holds after
// Canonicalize.
func (s Selector) String() string {
	switch s.Kind {
	case KindRole:
		if s.Name == "" {
			return "role:" + s.Role
		}
		return "role:" + s.Role + " && name:" + s.Name
	case KindName:
		return "name:" + s.Name
	case KindID:
		return "id:" + s.Value
	case KindText:
		return "text:" + s.Value
	case KindDescription:
		return "description:" + s.Value
	case KindNativeID:
		return "nativeid:" + s.Value
	case KindPath:
		return "path:" + s.Value
	case KindAttributes:
		return s.renderAttributes()
	case KindVisible:
		return "visible:" + strconv.FormatBool(s.Bool)
	case KindEnabled:
		return "enabled:" + strconv.FormatBool(s.Bool)
	case KindChain:
		parts := make([]string, len(s.Chain))
		for i, c := range s.Chain {
			parts[i] = c.String()
		}
		return strings.Join(parts, " >> ")
	case KindAnd:
		parts := make([]string, len(s.Chain))
		for i, c := range s.Chain {
			parts[i] = c.String()
		}
		return strings.Join(parts, " && ")
	case KindNth:
		return fmt.Sprintf("nth:(%s, %d)", s.Base.String(), s.Index)
	case KindHas:
		return fmt.Sprintf("has:(%s, %s)", s.Base.String(), s.Target.String())
	case KindRightOf:
		return fmt.Sprintf("rightof:(%s, %s)", s.Base.String(), s.Target.String())
	case KindLeftOf:
		return fmt.Sprintf("leftof:(%s, %s)", s.Base.String(), s.Target.String())
	case KindAbove:
		return fmt.Sprintf("above:(%s, %s)", s.Base.String(), s.Target.String())
	case KindBelow:
		return fmt.Sprintf("below:(%s, %s)", s.Base.String(), s.Target.String())
	case KindNear:
		return fmt.Sprintf("near:(%s, %s)", s.Base.String(), s.Target.String())
	default:
		return fmt.Sprintf("<invalid selector kind %d>", int(s.Kind))
	}
}

func (s Selector) renderAttributes() string {
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "attr:" + k + ":" + s.Attributes[k]
	}
	return strings.Join(parts, " && ")
}

// Canonicalize normalises a Selector tree per the canonicalisation rules:
// pairs within a segment are sorted by key, a redundant visible:true
// alongside a named atomic is dropped, and role casing is normalised.
func Canonicalize(s Selector) Selector {
	switch s.Kind {
	case KindRole:
		s.Role = canonicalRole(s.Role)
		return s
	case KindChain:
		out := make([]Selector, len(s.Chain))
		for i, c := range s.Chain {
			out[i] = Canonicalize(c)
		}
		s.Chain = out
		return s
	case KindAnd:
		out := make([]Selector, 0, len(s.Chain))
		for _, c := range s.Chain {
			out = append(out, Canonicalize(c))
		}
		out = dropRedundantVisible(out)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Kind.String() < out[j].Kind.String() })
		if len(out) == 1 {
			return out[0]
		}
		s.Chain = out
		return s
	case KindNth, KindHas, KindRightOf, KindLeftOf, KindAbove, KindBelow, KindNear:
		if s.Base != nil {
			base := Canonicalize(*s.Base)
			s.Base = &base
		}
		if s.Target != nil {
			target := Canonicalize(*s.Target)
			s.Target = &target
		}
		return s
	default:
		return s
	}
}

// isNamedAtomic reports whether a selector already uniquely identifies an
// element by name, making an accompanying visible:true redundant.
func isNamedAtomic(s Selector) bool {
	switch s.Kind {
	case KindRole:
		return s.Name != ""
	case KindName, KindID, KindText, KindDescription, KindNativeID:
		return s.Value != "" || s.Name != ""
	default:
		return false
	}
}

func dropRedundantVisible(segs []Selector) []Selector {
	hasNamedAtomic := false
	for _, s := range segs {
		if isNamedAtomic(s) {
			hasNamedAtomic = true
			break
		}
	}
	if !hasNamedAtomic {
		return segs
	}

	out := make([]Selector, 0, len(segs))
	for _, s := range segs {
		if s.Kind == KindVisible && s.Bool {
			continue
		}
		out = append(out, s)
	}
	return out
}
