package clipboard

import "testing"

// TestCopyReadRoundTrip exercises the real system clipboard. It is skipped
// automatically when no clipboard backend is available (e.g. a headless CI
// runner without X11).
func TestCopyReadRoundTrip(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard backend available on this host")
	}

	want := "deskmcp-clipboard-roundtrip"
	if err := CopyToClipboard(want); err != nil {
		t.Fatalf("CopyToClipboard() error = %v", err)
	}

	got, err := ReadFromClipboard()
	if err != nil {
		t.Fatalf("ReadFromClipboard() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadFromClipboard() = %q, want %q", got, want)
	}
}

func TestDefaultTimeoutIsPositive(t *testing.T) {
	if DefaultTimeout <= 0 {
		t.Errorf("DefaultTimeout = %v, want > 0", DefaultTimeout)
	}
}
