package tools

import (
	"encoding/json"

	"github.com/PaesslerAG/jsonpath"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
)

// ParserDef describes how a workflow step's output_parser turns one or more
// prior steps' raw outputs into a list of extracted records (spec §4.5).
type ParserDef struct {
	// ContainerSelector is a JSONPath expression evaluated against the
	// located ui_tree, yielding the list of container nodes each field
	// mapping is applied to in turn.
	ContainerSelector string

	// FieldMappings maps an output field name to a JSONPath expression
	// evaluated against each container.
	FieldMappings map[string]string

	// UITreeSourceStepID names the step whose output holds the ui_tree to
	// search. Nil means "the last step run so far".
	UITreeSourceStepID *string
}

// Parse locates the ui_tree named by def (or the last step run, if
// unspecified) inside outputs, applies ContainerSelector to find the
// container nodes, then evaluates each field mapping against each
// container. A field whose JSONPath resolves to nothing is omitted from
// that record rather than recorded as null (spec §8 property 9); a
// container that yields no fields at all is dropped entirely.
func Parse(outputs map[string]any, lastStepID string, def ParserDef) ([]map[string]any, error) {
	sourceStepID := lastStepID
	if def.UITreeSourceStepID != nil && *def.UITreeSourceStepID != "" {
		sourceStepID = *def.UITreeSourceStepID
	}
	if sourceStepID == "" {
		return nil, deskerr.New(deskerr.KindParserFailed, "output parser has no step to read a ui_tree from")
	}

	stepOutput, ok := outputs[sourceStepID]
	if !ok {
		return nil, deskerr.New(deskerr.KindParserFailed, "step %q has no recorded output", sourceStepID)
	}

	tree, err := asGenericJSON(stepOutput)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindParserFailed, err, "step %q output is not JSON-shaped", sourceStepID)
	}

	uiTree, err := lookupUITree(tree)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindParserFailed, err, "step %q has no ui_tree", sourceStepID)
	}

	containers, err := resolveContainers(uiTree, def.ContainerSelector)
	if err != nil {
		return nil, deskerr.Wrap(deskerr.KindParserFailed, err, "container_selector %q failed", def.ContainerSelector)
	}

	results := make([]map[string]any, 0, len(containers))
	for _, container := range containers {
		record := map[string]any{}
		for field, path := range def.FieldMappings {
			value, err := jsonpath.Get(path, container)
			if err != nil {
				continue
			}
			if value == nil {
				continue
			}
			if list, isList := value.([]interface{}); isList {
				if len(list) == 0 {
					continue
				}
				value = list[0]
			}
			record[field] = value
		}
		if len(record) == 0 {
			continue
		}
		results = append(results, record)
	}
	return results, nil
}

// asGenericJSON round-trips v through JSON so jsonpath.Get, which only
// understands map[string]interface{}/[]interface{}/primitives, can walk a
// typed Go struct like tree.WindowTreeResult the same way it walks a plain
// map decoded straight from JSON.
func asGenericJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

// lookupUITree finds the ui_tree field on a generic JSON value produced by
// get_window_tree's output (a map with a "Tree" key, per tree.WindowTreeResult's
// JSON shape) or, failing that, treats the whole value as the tree itself.
func lookupUITree(v any) (any, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v, nil
	}
	if t, ok := m["ui_tree"]; ok {
		return t, nil
	}
	if t, ok := m["Tree"]; ok {
		return t, nil
	}
	return v, nil
}

func resolveContainers(tree any, selector string) ([]any, error) {
	if selector == "" {
		return []any{tree}, nil
	}
	result, err := jsonpath.Get(selector, tree)
	if err != nil {
		return nil, err
	}
	if list, ok := result.([]interface{}); ok {
		out := make([]any, len(list))
		copy(out, list)
		return out, nil
	}
	return []any{result}, nil
}
