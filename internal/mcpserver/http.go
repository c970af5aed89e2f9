package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/deskmcp/internal/mcp"
)

// serveHTTP runs the streamable-HTTP/SSE transport: a single /mcp endpoint
// carrying JSON-RPC request/response bodies, plus /health and /status for
// operational probing, until ctx is cancelled.
func (s *Server) serveHTTP(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.HTTPPort)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/mcp", s.requireBearerToken(http.HandlerFunc(s.handleMCP)))
	if s.config.Observability.Metrics.Enabled {
		mux.Handle(s.config.Observability.Metrics.Path, promhttp.Handler())
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.logf(ctx, "info", "mcp http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logf(ctx, "warn", "http server shutdown error", "error", err.Error())
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleHealth reports process liveness: 200 when the concurrency gate has
// free capacity, 206 when every slot is in use but the gate is still
// accepting waiters, 503 only if the server cannot serve at all (never
// reached today, since a built Server is always minimally able to serve;
// kept as the status this handler contract reserves for a future
// dependency check, e.g. a platform engine that failed to attach).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	st := s.gate.status()

	statusCode := http.StatusOK
	status := "ok"
	if st.Busy {
		statusCode = http.StatusPartialContent
		status = "busy"
	}

	response := map[string]any{
		"status":    status,
		"uptime_ms": time.Since(s.startedAt).Milliseconds(),
	}
	data, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(statusCode)
	w.Write(data)
}

// handleStatus reports the concurrency gate's current state per spec §6,
// returning 503 instead of 200 when the gate is saturated so a caller can
// tell "busy" apart from "healthy" without parsing the body.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	st := s.gate.status()
	data, err := json.Marshal(st)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	statusCode := http.StatusOK
	if st.Busy {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)
	w.Write(data)
}

// handleMCP decodes one JSON-RPC request body, dispatches it, and writes the
// JSON-RPC response. x-request-timeout-ms, if present, bounds the request's
// context; x-request-id, if present, is echoed back as a response header
// for client-side correlation with server logs.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if raw := r.Header.Get("x-request-timeout-ms"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
			defer cancel()
		}
	}
	if reqID := r.Header.Get("x-request-id"); reqID != "" {
		w.Header().Set("x-request-id", reqID)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 16*1024*1024))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req mcp.JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeHTTPResponse(w, &mcp.JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &mcp.JSONRPCError{Code: mcp.ErrCodeParseError, Message: "invalid JSON-RPC request: " + err.Error()},
		}, http.StatusOK)
		return
	}

	start := time.Now()
	resp, status := s.Dispatch(ctx, &req)
	if s.metrics != nil {
		s.metrics.RecordHTTPRequest(r.Method, "/mcp", strconv.Itoa(status), time.Since(start).Seconds())
	}
	writeHTTPResponse(w, resp, status)
}

// writeHTTPResponse encodes resp as the HTTP body, writing status as the
// response's status line. Gate saturation (503) and cancellation (408) are
// the only cases callers pass anything other than http.StatusOK; a
// JSON-RPC-level error still rides back on 200 per JSON-RPC-over-HTTP
// convention.
func writeHTTPResponse(w http.ResponseWriter, resp *mcp.JSONRPCResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	w.Write(data)
}
