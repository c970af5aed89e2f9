package selector

import (
	"strconv"
	"strings"
)

// Parse turns a textual selector expression into a typed Selector tree.
//
//	expr := seg ( " >> " seg )*
//	seg  := pair ( " && " pair )*
//	pair := key ":" value
func Parse(input string) (Selector, error) {
	stages := splitTopLevel(input, ">>")
	if len(stages) == 0 {
		return Selector{}, parseErr(input, 0, "empty selector")
	}

	segments := make([]Selector, 0, len(stages))
	offset := 0
	for _, stage := range stages {
		seg, err := parseSegment(input, offset, stage)
		if err != nil {
			return Selector{}, err
		}
		segments = append(segments, seg)
		offset += len(stage) + len(" >> ")
	}

	if len(segments) == 1 {
		return segments[0], nil
	}
	return ChainOf(segments...), nil
}

// parseSegment parses one "pair && pair && ..." segment and folds the
// result: a lone role(+name) pair collapses to KindRole; everything else
// becomes KindAnd (or the single pair's own kind, if there is only one).
func parseSegment(input string, offset int, segment string) (Selector, error) {
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return Selector{}, parseErr(input, offset, "empty segment")
	}

	pairStrs := splitTopLevel(trimmed, "&&")
	pairs := make([]Selector, 0, len(pairStrs))
	pairOffset := offset
	for _, p := range pairStrs {
		sel, err := parsePair(input, pairOffset, strings.TrimSpace(p))
		if err != nil {
			return Selector{}, err
		}
		pairs = append(pairs, sel)
		pairOffset += len(p) + len(" && ")
	}

	return foldSegment(pairs), nil
}

// foldSegment combines the pairs of one segment into a single Selector.
func foldSegment(pairs []Selector) Selector {
	if len(pairs) == 1 {
		return pairs[0]
	}

	// role + name on one segment collapse into a single atomic Role match.
	if len(pairs) == 2 {
		var role, name *Selector
		for i := range pairs {
			switch pairs[i].Kind {
			case KindRole:
				role = &pairs[i]
			case KindName:
				name = &pairs[i]
			}
		}
		if role != nil && name != nil {
			return Role(role.Role, name.Name)
		}
	}

	return Selector{Kind: KindAnd, Chain: pairs}
}

// parsePair parses one "key:value" token, recursing into parenthesised
// sub-expressions for combinator keys (nth, has, and the spatial relations).
func parsePair(input string, offset int, pair string) (Selector, error) {
	idx := strings.Index(pair, ":")
	if idx < 0 {
		return Selector{}, parseErr(input, offset, "missing ':' in pair %q", pair)
	}
	key := strings.ToLower(strings.TrimSpace(pair[:idx]))
	value := strings.TrimSpace(pair[idx+1:])

	switch {
	case key == "role":
		return Role(value, ""), nil
	case key == "name":
		return Name(value), nil
	case key == "id":
		return ID(value), nil
	case key == "text":
		return Text(value), nil
	case key == "description":
		return Description(value), nil
	case key == "nativeid":
		return NativeID(value), nil
	case key == "path":
		return Path(value), nil
	case key == "visible":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Selector{}, parseErr(input, offset, "visible expects true/false, got %q", value)
		}
		return VisibleIs(b), nil
	case key == "enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Selector{}, parseErr(input, offset, "enabled expects true/false, got %q", value)
		}
		return EnabledIs(b), nil
	case strings.HasPrefix(key, "attr:"):
		attrName := key[len("attr:"):]
		if attrName == "" {
			return Selector{}, parseErr(input, offset, "attr: key requires a property name")
		}
		return Attrs(map[string]string{attrName: value}), nil
	case key == "nth":
		return parseNth(input, offset, value)
	case key == "has":
		return parseTwoArgCombinator(input, offset, value, HasOf)
	case key == "rightof":
		return parseTwoArgCombinator(input, offset, value, RightOfOf)
	case key == "leftof":
		return parseTwoArgCombinator(input, offset, value, LeftOfOf)
	case key == "above":
		return parseTwoArgCombinator(input, offset, value, AboveOf)
	case key == "below":
		return parseTwoArgCombinator(input, offset, value, BelowOf)
	case key == "near":
		return parseTwoArgCombinator(input, offset, value, NearOf)
	default:
		return Selector{}, parseErr(input, offset, "unknown selector key %q", key)
	}
}

func parseNth(input string, offset int, value string) (Selector, error) {
	args, err := parseParenArgs(input, offset, value)
	if err != nil {
		return Selector{}, err
	}
	if len(args) != 2 {
		return Selector{}, parseErr(input, offset, "nth expects (selector, index), got %d args", len(args))
	}
	base, err := Parse(strings.TrimSpace(args[0]))
	if err != nil {
		return Selector{}, err
	}
	index, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return Selector{}, parseErr(input, offset, "nth index must be an integer, got %q", args[1])
	}
	return NthOf(base, index), nil
}

func parseTwoArgCombinator(input string, offset int, value string, build func(a, b Selector) Selector) (Selector, error) {
	args, err := parseParenArgs(input, offset, value)
	if err != nil {
		return Selector{}, err
	}
	if len(args) != 2 {
		return Selector{}, parseErr(input, offset, "expected (selector, selector), got %d args", len(args))
	}
	a, err := Parse(strings.TrimSpace(args[0]))
	if err != nil {
		return Selector{}, err
	}
	b, err := Parse(strings.TrimSpace(args[1]))
	if err != nil {
		return Selector{}, err
	}
	return build(a, b), nil
}

// parseParenArgs strips the surrounding parens from value and splits the
// contents into top-level comma-separated arguments.
func parseParenArgs(input string, offset int, value string) ([]string, error) {
	if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
		return nil, parseErr(input, offset, "expected parenthesised arguments, got %q", value)
	}
	inner := value[1 : len(value)-1]
	return splitTopLevel(inner, ","), nil
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// parentheses, and trims the separator's own surrounding whitespace.
func splitTopLevel(s string, sep string) []string {
	var parts []string
	depth := 0
	start := 0
	i := 0
	for i < len(s) {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && matchesSepAt(s, i, sep) {
			parts = append(parts, strings.TrimSpace(s[start:i]))
			i += sepSpan(s, i, sep)
			start = i
			continue
		}
		i++
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// matchesSepAt reports whether sep (optionally surrounded by whitespace)
// begins at position i in s.
func matchesSepAt(s string, i int, sep string) bool {
	j := i
	for j < len(s) && s[j] == ' ' {
		j++
	}
	return strings.HasPrefix(s[j:], sep)
}

// sepSpan returns how many bytes to advance to skip past sep and any
// whitespace immediately preceding it, starting from position i.
func sepSpan(s string, i int, sep string) int {
	j := i
	for j < len(s) && s[j] == ' ' {
		j++
	}
	return (j - i) + len(sep)
}
