package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/ipc"
	"github.com/haasonsaas/deskmcp/internal/mcp"
	"github.com/haasonsaas/deskmcp/internal/observability"
	"github.com/haasonsaas/deskmcp/internal/tools"
	"github.com/haasonsaas/deskmcp/internal/workflow"
)

// Dispatch routes one JSON-RPC request to its handler and returns the
// envelope to send back along with the HTTP status the /mcp transport
// should report for it (stdio/SSE callers ignore the second value). Gate
// saturation and cancellation (spec §6: 408 cancelled/timeout, 503 busy)
// are the only cases that deviate from 200; everything else, including a
// JSON-RPC-level error, rides back on a 200 per JSON-RPC-over-HTTP
// convention. Notifications (req.ID == nil) never reach here; callers
// filter those out before invoking Dispatch.
func (s *Server) Dispatch(ctx context.Context, req *mcp.JSONRPCRequest) (*mcp.JSONRPCResponse, int) {
	result, rpcErr, httpStatus := s.route(ctx, req.Method, req.Params)
	resp := &mcp.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp, httpStatus
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = &mcp.JSONRPCError{Code: mcp.ErrCodeInternalError, Message: "failed to encode response: " + err.Error()}
		return resp, http.StatusOK
	}
	resp.Result = raw
	return resp, http.StatusOK
}

func (s *Server) route(ctx context.Context, method string, params json.RawMessage) (any, *mcp.JSONRPCError, int) {
	switch method {
	case "initialize":
		result, err := s.handleInitialize(ctx, params)
		return result, err, http.StatusOK
	case "ping":
		return map[string]any{}, nil, http.StatusOK
	case "tools/list":
		result, err := s.handleToolsList(ctx)
		return result, err, http.StatusOK
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	case "resources/list":
		return mcp.ListResourcesResult{Resources: []*mcp.MCPResource{}}, nil, http.StatusOK
	case "resources/read":
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeResourceNotFound, Message: "no resources are exposed by this server"}, http.StatusOK
	case "prompts/list":
		return mcp.ListPromptsResult{Prompts: []*mcp.MCPPrompt{}}, nil, http.StatusOK
	case "prompts/get":
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodePromptNotFound, Message: "no prompts are exposed by this server"}, http.StatusOK
	case "workflows/run":
		return s.handleWorkflowsRun(ctx, params)
	default:
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeMethodNotFound, Message: "unknown method " + method}, http.StatusOK
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (any, *mcp.JSONRPCError) {
	var p initializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: "invalid initialize params: " + err.Error()}
		}
	}
	return mcp.InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      mcp.ServerInfo{Name: ServerName, Version: ServerVersion},
		Capabilities: mcp.Capabilities{
			Tools:     &mcp.ToolsCapability{},
			Resources: &mcp.ResourcesCapability{},
			Prompts:   &mcp.PromptsCapability{},
		},
	}, nil
}

func (s *Server) handleToolsList(ctx context.Context) (any, *mcp.JSONRPCError) {
	defs := s.registry.List()
	out := make([]*mcp.MCPTool, 0, len(defs))
	for _, def := range defs {
		out = append(out, &mcp.MCPTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.SchemaJSON,
		})
	}
	return mcp.ListToolsResult{Tools: out}, nil
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *mcp.JSONRPCError, int) {
	var p toolsCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: "invalid tools/call params: " + err.Error()}, http.StatusOK
	}
	if _, ok := s.registry.Get(p.Name); !ok {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeToolNotFound, Message: "unknown tool " + p.Name}, http.StatusOK
	}

	release, err := s.gate.acquire(ctx)
	if err != nil {
		rpcErr, status := gateError(s.gate, err)
		return nil, rpcErr, status
	}
	defer release()

	if s.metrics != nil {
		ctx = tools.WithCacheMissRecorder(ctx, s.metrics)
	}

	start := time.Now()
	value, invokeErr := s.registry.Invoke(ctx, s.desktop, p.Name, p.Arguments)
	status := "success"
	if invokeErr != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordMCPToolCall(p.Name, status, time.Since(start).Seconds())
	}
	if invokeErr != nil {
		return nil, toolCallError(invokeErr), http.StatusOK
	}
	return mcp.ToolCallResult{Content: []mcp.ToolResultContent{toResultContent(value)}}, nil, http.StatusOK
}

func toResultContent(value any) mcp.ToolResultContent {
	raw, err := json.Marshal(value)
	if err != nil {
		return mcp.ToolResultContent{Type: "text", Text: "<unencodable result>"}
	}
	return mcp.ToolResultContent{Type: "text", Text: string(raw)}
}

func toolCallError(err error) *mcp.JSONRPCError {
	kind := deskerr.KindOf(err)
	code := mcp.ErrCodeInternalError
	switch kind {
	case deskerr.KindInvalidArgument, deskerr.KindSelectorParse:
		code = mcp.ErrCodeInvalidParams
	}
	return &mcp.JSONRPCError{Code: code, Message: err.Error()}
}

// gateError translates a concurrency-gate acquire failure into a JSON-RPC
// error plus the HTTP status the /mcp transport should report for it
// (stdio ignores the status). A caller-cancelled wait surfaces as 408; the
// gate's own wait budget running out because every slot is occupied
// surfaces as 503, with the gate's current occupancy embedded in the
// error's Data field so a client can read busy/activeRequests straight off
// the error without a follow-up call to /status.
func gateError(g *gate, err error) (*mcp.JSONRPCError, int) {
	kind := deskerr.KindOf(err)
	code := mcp.ErrCodeInternalError
	status := http.StatusOK
	switch kind {
	case deskerr.KindCancelled:
		code = mcp.ErrCodeInternalError
		status = http.StatusRequestTimeout
	case deskerr.KindTimeout:
		code = mcp.ErrCodeInternalError
		status = http.StatusServiceUnavailable
	}
	data, marshalErr := json.Marshal(g.status())
	if marshalErr != nil {
		data = nil
	}
	return &mcp.JSONRPCError{Code: code, Message: err.Error(), Data: data}, status
}

// workflowRunParams is the wire shape of "workflows/run": a complete
// Workflow definition, run to completion and reported back as a
// WorkflowResult. This is the entry point a client uses to drive a full
// multi-step, variable-bound workflow, distinct from a single tools/call —
// execute_sequence nests the same Step shape inside one tool's arguments for
// sub-sequences, while workflows/run is the top-level equivalent with
// variables, input validation, and output bindings.
type workflowRunParams struct {
	Steps       []map[string]any         `json:"steps"`
	Variables   map[string]any           `json:"variables,omitempty"`
	Outputs     []workflow.OutputBinding `json:"outputs,omitempty"`
	StopOnError bool                     `json:"stop_on_error,omitempty"`
}

func (s *Server) handleWorkflowsRun(ctx context.Context, params json.RawMessage) (any, *mcp.JSONRPCError, int) {
	var p workflowRunParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: "invalid workflows/run params: " + err.Error()}, http.StatusOK
	}

	rawSteps, err := json.Marshal(p.Steps)
	if err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: "invalid workflow steps: " + err.Error()}, http.StatusOK
	}
	var steps []workflow.Step
	if err := json.Unmarshal(rawSteps, &steps); err != nil {
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInvalidParams, Message: "invalid workflow steps: " + err.Error()}, http.StatusOK
	}
	entries := make([]workflow.StepOrGroup, 0, len(steps))
	for _, step := range steps {
		entries = append(entries, workflow.Entry(step))
	}

	release, gateErr := s.gate.acquire(ctx)
	if gateErr != nil {
		rpcErr, status := gateError(s.gate, gateErr)
		return nil, rpcErr, status
	}
	defer release()

	runID := observability.GetRunID(ctx)
	if runID == "" {
		runID = generateRunID()
		ctx = observability.AddRunID(ctx, runID)
	}

	events, logs := s.openTelemetryChannels(ctx, runID)
	if events != nil {
		defer events.Close()
	}
	if logs != nil {
		defer logs.Close()
	}

	execCfg := *s.execCfg
	execCfg.Events = events
	executor := workflow.NewExecutor(s.registry, s.desktop, &execCfg)

	if logs != nil {
		logs.Publish(ipc.NewLogRecord("info", "workflow run started", map[string]any{"run_id": runID, "steps": len(entries)}))
	}

	wf := workflow.Workflow{
		Steps:       entries,
		Variables:   p.Variables,
		Outputs:     p.Outputs,
		StopOnError: p.StopOnError,
	}
	result, runErr := executor.Run(ctx, wf)
	if runErr != nil {
		if logs != nil {
			logs.Publish(ipc.NewLogRecord("error", "workflow run failed", map[string]any{"run_id": runID, "error": runErr.Error()}))
		}
		return nil, &mcp.JSONRPCError{Code: mcp.ErrCodeInternalError, Message: runErr.Error()}, http.StatusOK
	}
	if logs != nil {
		logs.Publish(ipc.NewLogRecord("info", "workflow run completed", map[string]any{"run_id": runID, "status": result.Status}))
	}
	return result, nil, http.StatusOK
}

// openTelemetryChannels opens this run's event/log IPC channels (spec §6:
// mcp-workflow-events-<exec_id>, mcp-workflow-logs-<exec_id>). A failure to
// open either is logged and treated as telemetry simply being unavailable
// for this run rather than failing the run itself — a client that never
// dials in to tail a run should not be able to block it from completing.
func (s *Server) openTelemetryChannels(ctx context.Context, runID string) (*ipc.Channel, *ipc.Channel) {
	events, err := ipc.Open(ipc.EventChannelName(runID))
	if err != nil {
		s.logf(ctx, "warn", "failed to open workflow event channel", "run_id", runID, "error", err.Error())
		events = nil
	}
	logs, err := ipc.Open(ipc.LogChannelName(runID))
	if err != nil {
		s.logf(ctx, "warn", "failed to open workflow log channel", "run_id", runID, "error", err.Error())
		logs = nil
	}
	return events, logs
}
