package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/deskmcp/internal/config"
	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/desktop"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/mcp"
	"github.com/haasonsaas/deskmcp/internal/platform"
	"github.com/haasonsaas/deskmcp/internal/selector"
	"github.com/haasonsaas/deskmcp/internal/tools"
)

// noopEngine satisfies platform.Engine with no real behavior; these tests
// exercise JSON-RPC dispatch and the concurrency gate, not platform
// resolution.
type noopEngine struct{}

func (noopEngine) Applications(ctx context.Context) ([]element.Element, error) { return nil, nil }
func (noopEngine) FocusedElement(ctx context.Context) (element.Element, error) {
	return element.Element{}, deskerr.ElementNotFound("nothing focused")
}
func (noopEngine) Root(ctx context.Context) (element.Element, error) { return element.Element{}, nil }
func (noopEngine) Resolve(ctx context.Context, sel selector.Selector, opts platform.ResolveOptions) ([]element.Element, error) {
	return nil, nil
}
func (noopEngine) Activate(ctx context.Context, el element.Element, opts platform.ActivationOptions) (func(), error) {
	return func() {}, nil
}
func (noopEngine) Name() string { return "noop" }
func (noopEngine) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry, err := tools.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry: %v", err)
	}
	d := desktop.New(noopEngine{}, desktop.Options{})
	cfg := &config.Config{}
	cfg.Server.Transport = "stdio"
	cfg.Concurrency.MaxActiveOperations = 2
	return New(cfg, registry, d, nil, nil, nil, nil)
}

func callRPC(t *testing.T, s *Server, method string, params any) *mcp.JSONRPCResponse {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = b
	}
	req := &mcp.JSONRPCRequest{JSONRPC: "2.0", ID: float64(1), Method: method, Params: raw}
	resp, _ := s.Dispatch(context.Background(), req)
	return resp
}

func TestDispatchInitialize(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "initialize", map[string]any{"protocolVersion": ProtocolVersion})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result mcp.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ServerInfo.Name != ServerName {
		t.Fatalf("expected server name %q, got %q", ServerName, result.ServerInfo.Name)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Fatalf("expected protocol version %q, got %q", ProtocolVersion, result.ProtocolVersion)
	}
}

func TestDispatchPing(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "ping", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestDispatchToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "tools/list", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result mcp.ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) == 0 {
		t.Fatalf("expected at least one tool")
	}
	found := false
	for _, tool := range result.Tools {
		if tool.Name == "set_variable" {
			found = true
			if len(tool.InputSchema) == 0 {
				t.Fatalf("expected set_variable to carry a non-empty input schema")
			}
		}
	}
	if !found {
		t.Fatalf("expected set_variable in tools/list, got %+v", result.Tools)
	}
}

func TestDispatchToolsCallSuccess(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "tools/call", map[string]any{
		"name":      "set_variable",
		"arguments": map[string]any{"name": "x", "value": "hello"},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result mcp.ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != `"hello"` {
		t.Fatalf("unexpected tool result content: %+v", result.Content)
	}
}

func TestDispatchToolsCallUnknownTool(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "tools/call", map[string]any{"name": "does_not_exist", "arguments": map[string]any{}})
	if resp.Error == nil {
		t.Fatalf("expected an error for an unknown tool")
	}
	if resp.Error.Code != mcp.ErrCodeToolNotFound {
		t.Fatalf("expected ErrCodeToolNotFound, got %d", resp.Error.Code)
	}
}

func TestDispatchToolsCallValidationFailure(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "tools/call", map[string]any{
		"name":      "set_variable",
		"arguments": map[string]any{"name": 5},
	})
	if resp.Error == nil {
		t.Fatalf("expected a validation error")
	}
	if resp.Error.Code != mcp.ErrCodeInvalidParams {
		t.Fatalf("expected ErrCodeInvalidParams, got %d", resp.Error.Code)
	}
}

func TestDispatchResourcesAndPromptsAreEmpty(t *testing.T) {
	s := newTestServer(t)

	resourcesResp := callRPC(t, s, "resources/list", nil)
	if resourcesResp.Error != nil {
		t.Fatalf("unexpected error: %+v", resourcesResp.Error)
	}
	var resources mcp.ListResourcesResult
	if err := json.Unmarshal(resourcesResp.Result, &resources); err != nil {
		t.Fatalf("unmarshal resources: %v", err)
	}
	if len(resources.Resources) != 0 {
		t.Fatalf("expected no resources, got %+v", resources.Resources)
	}

	readResp := callRPC(t, s, "resources/read", map[string]any{"uri": "anything"})
	if readResp.Error == nil || readResp.Error.Code != mcp.ErrCodeResourceNotFound {
		t.Fatalf("expected ErrCodeResourceNotFound, got %+v", readResp.Error)
	}

	promptsResp := callRPC(t, s, "prompts/list", nil)
	if promptsResp.Error != nil {
		t.Fatalf("unexpected error: %+v", promptsResp.Error)
	}

	getResp := callRPC(t, s, "prompts/get", map[string]any{"name": "anything"})
	if getResp.Error == nil || getResp.Error.Code != mcp.ErrCodePromptNotFound {
		t.Fatalf("expected ErrCodePromptNotFound, got %+v", getResp.Error)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "nonexistent/method", nil)
	if resp.Error == nil || resp.Error.Code != mcp.ErrCodeMethodNotFound {
		t.Fatalf("expected ErrCodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestDispatchWorkflowsRun(t *testing.T) {
	s := newTestServer(t)
	resp := callRPC(t, s, "workflows/run", map[string]any{
		"steps": []map[string]any{
			{"id": "a", "tool_name": "set_variable", "arguments": map[string]any{"name": "x", "value": "one"}, "output_binding": "x"},
		},
		"variables": map[string]any{},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}
