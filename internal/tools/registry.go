package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/desktop"
)

// Definition is one registered tool: a name, its argument schema, and the
// function that runs it against a Desktop.
type Definition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	// SchemaJSON is the raw JSON Schema document Schema was compiled from,
	// kept alongside the compiled form so a tools/list response can echo it
	// verbatim without re-deriving it from a compiled jsonschema.Schema,
	// which is built for validation and not guaranteed to round-trip back
	// to JSON.
	SchemaJSON json.RawMessage
	Run        func(ctx context.Context, d *desktop.Desktop, args map[string]any) (any, error)
}

// Registry holds the set of tools callable through the MCP server's
// tools/call method. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds def, failing if its name is empty or already taken.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return deskerr.InvalidArgument("tool definition has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return deskerr.InvalidArgument("tool %q is already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// List returns every registered tool, sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke validates args against name's schema, then runs the tool. Returns
// deskerr.KindInvalidArgument for an unknown tool or a schema violation,
// otherwise whatever the tool's Run returns.
func (r *Registry) Invoke(ctx context.Context, d *desktop.Desktop, name string, args map[string]any) (any, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, deskerr.InvalidArgument("unknown tool %q", name)
	}
	if def.Schema != nil {
		if err := def.Schema.Validate(args); err != nil {
			return nil, deskerr.Wrap(deskerr.KindInvalidArgument, err, "arguments for tool %q failed validation", name)
		}
	}
	return def.Run(ctx, d, args)
}

// decodeArgs round-trips the generic args map into a typed struct via JSON,
// the simplest faithful way to turn jsonschema-validated map[string]any
// input into the Go struct a tool's Run body wants to work with.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return deskerr.Wrap(deskerr.KindInvalidArgument, err, "encoding tool arguments failed")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return deskerr.Wrap(deskerr.KindInvalidArgument, err, "decoding tool arguments failed")
	}
	return nil
}
