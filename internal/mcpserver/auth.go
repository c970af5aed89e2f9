package mcpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/haasonsaas/deskmcp/internal/mcp"
)

// requireBearerToken wraps next with a check against cfg.Auth.BearerToken.
// An empty configured token disables the check entirely (stdio-style,
// unauthenticated deployments). Unlike a JWT-issuing auth service, there is
// exactly one valid token here, so the check is a constant-time comparison
// rather than signature verification.
func (s *Server) requireBearerToken(next http.Handler) http.Handler {
	token := s.config.Auth.BearerToken
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		presented := strings.TrimSpace(header[len("bearer "):])
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			writeUnauthorized(w, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeUnauthorized rejects an /mcp request that failed bearer-token
// verification with a JSON-RPC envelope rather than a bare text body, so a
// client parses auth failures the same way it parses every other /mcp
// error. The HTTP status line stays 401; the JSON-RPC error code is what
// distinguishes an auth rejection from a transport-level one.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeHTTPResponse(w, &mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &mcp.JSONRPCError{Code: mcp.ErrCodeUnauthorized, Message: message},
	}, http.StatusUnauthorized)
}
