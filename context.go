package stampede

import (
	"context"
	"time"
)

type (
	skipReadCtxKey struct{}
	ttlCtxKey      struct{}
)

// WithTTL returns context with an entry expiry override.
//
// Coordinator writes the cache entry with this ttl instead of the configured
// hard ttl.
func WithTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, ttlCtxKey{}, ttl)
}

// TTL returns entry expiry override or DefaultTTL.
func TTL(ctx context.Context) time.Duration {
	ttl, _ := ctx.Value(ttlCtxKey{}).(time.Duration)

	return ttl
}

// DefaultTTL indicates absent ttl override.
const DefaultTTL = time.Duration(0)

// WithSkipRead returns context with cache read ignored.
//
// With such context Coordinator.Read discards the cached value and attempts a
// refresh regardless of entry age, there is no stale fallback either.
func WithSkipRead(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipReadCtxKey{}, true)
}

// SkipRead returns true if cache read is ignored in context.
func SkipRead(ctx context.Context) bool {
	_, ok := ctx.Value(skipReadCtxKey{}).(bool)

	return ok
}
