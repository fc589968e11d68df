package services

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	releaseKeyKey contextKey = "release_key"
)

// WithRequestID annotates context with a correlation identifier for one grab or scan.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(requestIDKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithReleaseKey annotates context with the "artist/folder" key of the release being worked on.
func WithReleaseKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, releaseKeyKey, key)
}

// ReleaseKeyFromContext returns the release key if present.
func ReleaseKeyFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(releaseKeyKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
