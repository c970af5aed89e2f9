package tools

import "context"

// ArtifactSink is the narrow interface a tool's Run body needs to persist a
// byproduct (a screenshot, a capture) without internal/tools importing
// internal/artifacts directly — the repository/store split and retention
// policy live entirely in that package; a tool only needs "write these
// bytes under this name and type, get back a reference".
type ArtifactSink interface {
	PutArtifact(ctx context.Context, artifactType, filename, mimeType string, data []byte) (reference string, err error)
}

type artifactSinkKey struct{}

// WithArtifactSink attaches sink to ctx so any tool invoked with the
// resulting context can persist byproducts through it. A nil sink is
// equivalent to not calling this at all.
func WithArtifactSink(ctx context.Context, sink ArtifactSink) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, artifactSinkKey{}, sink)
}

// artifactSinkFromContext returns the sink attached by WithArtifactSink, if
// any. Tools that produce no persistable byproduct never need to call this.
func artifactSinkFromContext(ctx context.Context) (ArtifactSink, bool) {
	sink, ok := ctx.Value(artifactSinkKey{}).(ArtifactSink)
	return sink, ok
}
