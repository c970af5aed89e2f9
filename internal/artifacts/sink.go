package artifacts

import (
	"bytes"
	"context"
)

// RepositorySink adapts a Repository to the narrow write-only interface
// internal/tools needs (tools.ArtifactSink) without that package importing
// this one. Any type with a matching PutArtifact method satisfies that
// interface structurally, so no explicit reference to it is needed here.
type RepositorySink struct {
	Repo Repository
}

// NewRepositorySink wraps repo for use as a tools.ArtifactSink.
func NewRepositorySink(repo Repository) *RepositorySink {
	return &RepositorySink{Repo: repo}
}

// PutArtifact stores data under the given type/filename/mime and returns the
// stored artifact's ID, the reference a later artifacts/get call resolves.
// Screenshots wider than maxScreenshotSide are downscaled first.
func (s *RepositorySink) PutArtifact(ctx context.Context, artifactType, filename, mimeType string, data []byte) (string, error) {
	if artifactType == "screenshot" && mimeType == "image/png" {
		data = downscaleScreenshot(data)
	}

	artifact := &Artifact{
		Type:     artifactType,
		MimeType: mimeType,
		Filename: filename,
		Size:     int64(len(data)),
	}
	if err := s.Repo.StoreArtifact(ctx, artifact, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return artifact.ID, nil
}
