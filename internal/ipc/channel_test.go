//go:build !windows

package ipc

import (
	"encoding/json"
	"testing"
	"time"
)

func testChannelName(t *testing.T) string {
	return "deskmcp-test-" + t.Name()
}

func TestChannelPublishAndReaderNextRoundTripsEventRecord(t *testing.T) {
	name := testChannelName(t)
	ch, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	reader, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer reader.Close()

	// give the accept loop a moment to register the new connection before
	// publishing, since Publish only reaches connections already accepted.
	time.Sleep(20 * time.Millisecond)

	record := NewEventRecord("exec-1", EventStepStarted, map[string]any{"step_id": "s1"})
	if err := ch.Publish(record); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if raw == nil {
		t.Fatal("Next returned nil record")
	}

	var got EventRecord
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.MCPEvent {
		t.Error("expected MCPEvent marker to be true")
	}
	if got.Type != EventStepStarted {
		t.Errorf("Type = %q, want %q", got.Type, EventStepStarted)
	}
	if got.ExecID != "exec-1" {
		t.Errorf("ExecID = %q, want exec-1", got.ExecID)
	}
}

func TestChannelPublishAndReaderNextRoundTripsLogRecord(t *testing.T) {
	name := testChannelName(t)
	ch, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	reader, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer reader.Close()

	time.Sleep(20 * time.Millisecond)

	record := NewLogRecord("info", "workflow run started", map[string]any{"run_id": "run-1"})
	if err := ch.Publish(record); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	var got LogRecord
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Level != "info" {
		t.Errorf("Level = %q, want info", got.Level)
	}
	if got.Message != "workflow run started" {
		t.Errorf("Message = %q, want %q", got.Message, "workflow run started")
	}
}

func TestReaderNextSkipsNonJSONLines(t *testing.T) {
	name := testChannelName(t)
	ch, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	reader, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer reader.Close()

	time.Sleep(20 * time.Millisecond)

	ch.mu.Lock()
	for conn := range ch.conns {
		conn.Write([]byte("not json\n"))
	}
	ch.mu.Unlock()

	record := NewLogRecord("warn", "after garbage line", nil)
	if err := ch.Publish(record); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw, err := reader.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var got LogRecord
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Message != "after garbage line" {
		t.Errorf("Next returned %q, expected the garbage line to be skipped", got.Message)
	}
}

func TestReaderCloseDrainsBufferedLinesBeforeClosing(t *testing.T) {
	name := testChannelName(t)
	ch, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	reader, err := Dial(name)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := ch.Publish(NewLogRecord("info", "one", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := ch.Publish(NewLogRecord("info", "two", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Closing the publisher first closes every accepted connection, giving
	// the reader's drain loop a defined EOF to stop at instead of blocking
	// forever waiting for more lines.
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("reader Close: %v", err)
	}
}
