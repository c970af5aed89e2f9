package overlay

import "testing"

func TestShowNoopWhenDisabled(t *testing.T) {
	s := NewState(false)
	if s.Show("win", "el", "click", "") {
		t.Fatal("expected Show to return false when overlay disabled")
	}
	if visible, _, _ := s.Snapshot(); visible {
		t.Fatal("expected overlay to stay hidden when disabled")
	}
}

func TestShowEnforcesCooldown(t *testing.T) {
	s := NewState(true)
	if !s.Show("win", "el-1", "click", "") {
		t.Fatal("expected first Show to succeed")
	}
	if s.Show("win", "el-2", "click", "") {
		t.Fatal("expected second Show within cooldown window to be suppressed")
	}
}

func TestHideClearsState(t *testing.T) {
	s := NewState(true)
	s.Show("win", "el-1", "click", "sub")
	s.Hide()
	if visible, message, sub := s.Snapshot(); visible || message != "" || sub != "" {
		t.Fatalf("expected cleared state after Hide, got visible=%v message=%q sub=%q", visible, message, sub)
	}
}

func TestSetEnabledFalseHidesActiveOverlay(t *testing.T) {
	s := NewState(true)
	s.Show("win", "el-1", "click", "")
	s.SetEnabled(false)
	if visible, _, _ := s.Snapshot(); visible {
		t.Fatal("expected overlay to hide when disabled mid-show")
	}
	if s.Enabled() {
		t.Fatal("expected Enabled() to report false")
	}
}

func TestGuardShowsThenHides(t *testing.T) {
	s := NewState(true)
	hide := s.Guard("win", "el-1", "type")
	if visible, message, _ := s.Snapshot(); !visible || message != "type" {
		t.Fatalf("expected overlay visible with message %q, got visible=%v message=%q", "type", visible, message)
	}
	hide()
	if visible, _, _ := s.Snapshot(); visible {
		t.Fatal("expected overlay hidden after Guard's returned func runs")
	}
}
