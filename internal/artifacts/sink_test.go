package artifacts

import (
	"context"
	"testing"
)

func TestRepositorySinkPutArtifactStoresAndReturnsID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	defer store.Close()

	repo := NewMemoryRepository(store, nil)
	sink := NewRepositorySink(repo)

	png := []byte("not-really-a-png")
	ref, err := sink.PutArtifact(context.Background(), "screenshot", "20260730T000000Z_capture_screen_monitor_0.png", "image/png", png)
	if err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}
	if ref == "" {
		t.Fatal("PutArtifact returned an empty artifact ID")
	}

	stored, reader, err := repo.GetArtifact(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	defer reader.Close()

	if stored.Type != "screenshot" {
		t.Errorf("Type = %q, want screenshot", stored.Type)
	}
	if stored.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", stored.MimeType)
	}
	if stored.Size != int64(len(png)) {
		t.Errorf("Size = %d, want %d", stored.Size, len(png))
	}
}
