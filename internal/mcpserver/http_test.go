package mcpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/deskmcp/internal/mcp"
)

func TestHandleHealthReportsOKWhenIdle(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleHealthReportsBusyWhenGateSaturated(t *testing.T) {
	s := newTestServer(t)
	release1, err := s.gate.acquire(req(t).Context())
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	release2, err := s.gate.acquire(req(t).Context())
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	defer release1()
	defer release2()

	rec := httptest.NewRecorder()
	s.handleHealth(rec, req(t))
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
}

func req(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/health", nil)
}

func TestHandleStatusReportsGateState(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st gateStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.MaxConcurrent != 2 {
		t.Fatalf("expected maxConcurrent 2, got %d", st.MaxConcurrent)
	}
}

func TestHandleMCPRejectsNonPost(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleMCP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleMCPDispatchesRequest(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(mcp.JSONRPCRequest{JSONRPC: "2.0", ID: float64(1), Method: "ping"})
	rec := httptest.NewRecorder()
	s.handleMCP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp mcp.JSONRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestHandleStatusReturns503WhenGateSaturated(t *testing.T) {
	s := newTestServer(t)
	release1, err := s.gate.acquire(req(t).Context())
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	release2, err := s.gate.acquire(req(t).Context())
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	defer release1()
	defer release2()

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var st gateStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if !st.Busy || st.ActiveRequests != 2 {
		t.Fatalf("expected busy with 2 active requests, got %+v", st)
	}
}

func TestHandleMCPReturns503WhenGateSaturated(t *testing.T) {
	s := newTestServer(t)
	s.gate = newGate(1, 20*time.Millisecond, nil)
	release, err := s.gate.acquire(req(t).Context())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	body, _ := json.Marshal(mcp.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      float64(1),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"wait","arguments":{"milliseconds":1}}`),
	})
	rec := httptest.NewRecorder()
	s.handleMCP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp mcp.JSONRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil {
		t.Fatalf("expected a JSON-RPC error, got none")
	}
	var busy gateStatus
	if err := json.Unmarshal(resp.Error.Data, &busy); err != nil {
		t.Fatalf("unmarshal error data: %v", err)
	}
	if !busy.Busy || busy.ActiveRequests != 1 {
		t.Fatalf("expected busy:true activeRequests:1 in error data, got %+v", busy)
	}
}

func TestHandleMCPReturns408WhenCallerCancels(t *testing.T) {
	s := newTestServer(t)
	s.gate = newGate(1, 0, nil)
	release, err := s.gate.acquire(req(t).Context())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	body, _ := json.Marshal(mcp.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      float64(1),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"wait","arguments":{"milliseconds":1}}`),
	})
	r := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	r.Header.Set("x-request-timeout-ms", "20")
	rec := httptest.NewRecorder()
	s.handleMCP(rec, r)
	if rec.Code != http.StatusRequestTimeout {
		t.Fatalf("expected 408, got %d", rec.Code)
	}
	var resp mcp.JSONRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil {
		t.Fatalf("expected a JSON-RPC error, got none")
	}
}

func TestRequireBearerTokenRejectsMissingHeader(t *testing.T) {
	s := newTestServer(t)
	s.config.Auth.BearerToken = "secret"
	handler := s.requireBearerToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp mcp.JSONRPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected a JSON-RPC envelope body, got %q: %v", rec.Body.String(), err)
	}
	if resp.Error == nil || resp.Error.Code != mcp.ErrCodeUnauthorized {
		t.Fatalf("expected JSON-RPC error code %d, got %+v", mcp.ErrCodeUnauthorized, resp.Error)
	}
}

func TestRequireBearerTokenAcceptsValidToken(t *testing.T) {
	s := newTestServer(t)
	s.config.Auth.BearerToken = "secret"
	handler := s.requireBearerToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Authorization", "Bearer secret")
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireBearerTokenDisabledWhenUnset(t *testing.T) {
	s := newTestServer(t)
	s.config.Auth.BearerToken = ""
	handler := s.requireBearerToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
