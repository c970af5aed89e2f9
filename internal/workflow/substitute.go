package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PaesslerAG/gval"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// evalContext builds the {vars, results_by_id, env} root every {{path}}
// substitution and every "if" gate expression is resolved against.
func evalContext(vars map[string]any, resultsByID map[string]StepResult) (map[string]any, error) {
	results, err := genericResults(resultsByID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"vars":          vars,
		"results_by_id": results,
		"env":           environMap(),
	}, nil
}

// genericResults round-trips resultsByID through JSON so dotted-path lookups
// and gval expressions see plain maps/slices regardless of StepResult's Go
// field types (matches the same normalisation internal/tools/parser.go
// applies to a tool's raw output before handing it to jsonpath).
func genericResults(resultsByID map[string]StepResult) (map[string]any, error) {
	raw, err := json.Marshal(resultsByID)
	if err != nil {
		return nil, fmt.Errorf("encode step results: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode step results: %w", err)
	}
	return generic, nil
}

func environMap() map[string]any {
	out := make(map[string]any)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}

// resolvePath walks root by dot-separated segments, descending into
// map[string]any values and, for purely numeric segments, into
// []interface{} values by index.
func resolvePath(root any, path string) (any, bool) {
	current := root
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// substituteArguments walks args, replacing every {{path}} token. A string
// that is exactly one token is replaced with the resolved value verbatim
// (preserving its type); a string with a token embedded in surrounding text
// has the token's value interpolated as text. Returns the (possibly
// unchanged) value and deskerr.KindInvalidArgument naming the first
// unresolved path, unless skippable is true, in which case the zero value
// and ok=false signal "skip this step" to the caller.
func substituteArguments(args map[string]any, ctx map[string]any, skippable bool) (map[string]any, bool, error) {
	out := make(map[string]any, len(args))
	for key, value := range args {
		substituted, ok, err := substituteValue(value, ctx, skippable)
		if err != nil || !ok {
			return nil, ok, err
		}
		out[key] = substituted
	}
	return out, true, nil
}

func substituteValue(value any, ctx map[string]any, skippable bool) (any, bool, error) {
	switch v := value.(type) {
	case string:
		return substituteString(v, ctx, skippable)
	case map[string]any:
		nested := make(map[string]any, len(v))
		for k, inner := range v {
			substituted, ok, err := substituteValue(inner, ctx, skippable)
			if err != nil || !ok {
				return nil, ok, err
			}
			nested[k] = substituted
		}
		return nested, true, nil
	case []any:
		nested := make([]any, len(v))
		for i, inner := range v {
			substituted, ok, err := substituteValue(inner, ctx, skippable)
			if err != nil || !ok {
				return nil, ok, err
			}
			nested[i] = substituted
		}
		return nested, true, nil
	default:
		return value, true, nil
	}
}

func substituteString(s string, ctx map[string]any, skippable bool) (any, bool, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, true, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		value, ok := resolvePath(ctx, path)
		if !ok {
			if skippable {
				return nil, false, nil
			}
			return nil, false, deskerr.InvalidArgument("unresolved substitution path %q", path)
		}
		return value, true, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		path := s[m[2]:m[3]]
		value, ok := resolvePath(ctx, path)
		if !ok {
			if skippable {
				return nil, false, nil
			}
			return nil, false, deskerr.InvalidArgument("unresolved substitution path %q", path)
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(fmt.Sprint(value))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), true, nil
}

// evaluateIf runs a gval boolean expression against ctx. An empty
// expression always gates true.
func evaluateIf(expr string, ctx map[string]any) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	result, err := gval.Evaluate(expr, ctx)
	if err != nil {
		return false, deskerr.Wrap(deskerr.KindInvalidArgument, err, "if expression %q failed to evaluate", expr)
	}
	b, ok := result.(bool)
	if !ok {
		return false, deskerr.InvalidArgument("if expression %q did not evaluate to a boolean", expr)
	}
	return b, nil
}
