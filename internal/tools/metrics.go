package tools

import "context"

// CacheMissRecorder is the narrow interface a tool's Run body needs to emit
// a cache_miss-style counter event without internal/tools importing
// internal/observability directly.
type CacheMissRecorder interface {
	RecordTreeCacheMiss(reason string)
}

type cacheMissRecorderKey struct{}

// WithCacheMissRecorder attaches recorder to ctx so a tool invoked with the
// resulting context can report live-fetch fallbacks through it. A nil
// recorder is equivalent to not calling this at all.
func WithCacheMissRecorder(ctx context.Context, recorder CacheMissRecorder) context.Context {
	if recorder == nil {
		return ctx
	}
	return context.WithValue(ctx, cacheMissRecorderKey{}, recorder)
}

// cacheMissRecorderFromContext returns the recorder attached by
// WithCacheMissRecorder, if any.
func cacheMissRecorderFromContext(ctx context.Context) (CacheMissRecorder, bool) {
	recorder, ok := ctx.Value(cacheMissRecorderKey{}).(CacheMissRecorder)
	return recorder, ok
}
