package mcpserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/deskmcp/internal/mcp"
)

func TestHandleStdioLineDispatchesAndWritesResponse(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)

	req, _ := json.Marshal(mcp.JSONRPCRequest{JSONRPC: "2.0", ID: float64(7), Method: "ping"})
	s.handleStdioLine(t.Context(), req, out)

	var resp mcp.JSONRPCResponse
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.ID != float64(7) {
		t.Fatalf("expected id 7, got %v", resp.ID)
	}
}

func TestHandleStdioLineReportsParseError(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)

	s.handleStdioLine(t.Context(), []byte("not json"), out)

	var resp mcp.JSONRPCResponse
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != mcp.ErrCodeParseError {
		t.Fatalf("expected ErrCodeParseError, got %+v", resp.Error)
	}
}

func TestHandleStdioLineNotificationProducesNoOutput(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)

	req, _ := json.Marshal(mcp.JSONRPCNotification{JSONRPC: "2.0", Method: "ping"})
	s.handleStdioLine(t.Context(), req, out)

	if buf.Len() != 0 {
		t.Fatalf("expected no output for a notification, got %q", buf.String())
	}
}
