package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"os"

	"github.com/haasonsaas/deskmcp/internal/mcp"
)

// serveStdio reads newline-delimited JSON-RPC requests from stdin and writes
// responses to stdout, one line each, until ctx is cancelled or stdin
// closes. Stdio is trusted by virtue of process ownership, so requests here
// skip the bearer-token check serveHTTP applies.
func (s *Server) serveStdio(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	done := make(chan struct{})
	lines := make(chan []byte)
	go func() {
		defer close(done)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			s.handleStdioLine(ctx, line, out)
		}
	}
}

func (s *Server) handleStdioLine(ctx context.Context, line []byte, out *bufio.Writer) {
	var req mcp.JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		resp := &mcp.JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &mcp.JSONRPCError{Code: mcp.ErrCodeParseError, Message: "invalid JSON-RPC request: " + err.Error()},
		}
		writeStdioResponse(out, resp)
		return
	}
	if req.ID == nil {
		// Notification: no response is sent, but it still runs.
		s.Dispatch(ctx, &req)
		return
	}
	resp, _ := s.Dispatch(ctx, &req)
	writeStdioResponse(out, resp)
}

func writeStdioResponse(out *bufio.Writer, resp *mcp.JSONRPCResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	out.Write(raw)
	out.WriteByte('\n')
	out.Flush()
}
