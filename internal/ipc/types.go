// Package ipc implements the per-execution telemetry channels spec §6
// names: two newline-delimited-JSON streams per running workflow, one
// carrying structured events and one carrying free-form logs, each exposed
// on the host's local IPC namespace so an external process can tail a
// specific execution without going through the MCP transport itself.
package ipc

import "time"

// EventType discriminates the records written to an execution's event
// channel.
type EventType string

const (
	EventProgress      EventType = "progress"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventScreenshot    EventType = "screenshot"
	EventData          EventType = "data"
	EventStatus        EventType = "status"
	EventLog           EventType = "log"
)

// EventRecord is one line written to an execution's event channel. The
// MCPEvent marker is always true and lets a reader distinguish an event
// channel's records from anything else that might share the namespace;
// Data carries whatever payload is specific to Type (a StepResult, a
// progress fraction, a screenshot reference).
type EventRecord struct {
	MCPEvent  bool      `json:"__mcp_event__"`
	Type      EventType `json:"type"`
	ExecID    string    `json:"exec_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewEventRecord builds an EventRecord with the marker field already set.
func NewEventRecord(execID string, eventType EventType, data any) EventRecord {
	return EventRecord{MCPEvent: true, Type: eventType, ExecID: execID, Timestamp: time.Now(), Data: data}
}

// LogRecord is one line written to an execution's log channel: a bare
// structured log entry, deliberately without the event marker so a reader
// can tell the two channels' lines apart even if it somehow receives both
// over the same stream.
type LogRecord struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLogRecord builds a LogRecord stamped with the current time.
func NewLogRecord(level, message string, data any) LogRecord {
	return LogRecord{Level: level, Message: message, Data: data, Timestamp: time.Now()}
}

// EventChannelName returns the channel name for an execution's event
// stream: mcp-workflow-events-<exec_id>.
func EventChannelName(execID string) string {
	return "mcp-workflow-events-" + execID
}

// LogChannelName returns the channel name for an execution's log stream:
// mcp-workflow-logs-<exec_id>.
func LogChannelName(execID string) string {
	return "mcp-workflow-logs-" + execID
}
