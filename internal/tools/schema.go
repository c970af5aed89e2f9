// Package tools implements the declarative tool registry (T1): each tool is
// a pure function plus a JSON Schema describing its arguments, registered by
// name rather than discovered through reflection/decorators.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildSchema reflects argsExample's Go type into a JSON Schema document via
// invopop/jsonschema, forces additionalProperties:false so an unrecognised
// argument fails validation rather than being silently ignored (spec §6),
// and compiles the result through santhosh-tekuri/jsonschema/v5 so
// Definition.Run call sites validate with one cheap Schema.Validate rather
// than re-parsing JSON Schema per invocation.
func BuildSchema(id string, argsExample any) (*jsonschema.Schema, json.RawMessage, error) {
	reflector := &invopop.Reflector{DoNotReference: true}
	reflected := reflector.Reflect(argsExample)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, nil, fmt.Errorf("reflect schema for %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode reflected schema for %s: %w", id, err)
	}
	doc["additionalProperties"] = false

	final, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("remarshal schema for %s: %w", id, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, bytes.NewReader(final)); err != nil {
		return nil, nil, fmt.Errorf("add schema resource for %s: %w", id, err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return nil, nil, err
	}
	return compiled, json.RawMessage(final), nil
}
