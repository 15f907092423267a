package stampede

import (
	"context"
	"time"
)

// Store is a shared key-value store with per-key expiry.
//
// All operations are atomic at the store: SetNX must be a single
// set-if-absent operation and CompareAndDelete a single conditional delete,
// not client-side check-then-act sequences. A key past its expiry behaves as
// absent for all operations.
//
// Implementations must be byte-transparent, Get returns exactly the bytes
// passed to Set, and must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with an expiry, ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value under key only if the key is absent.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete deletes key only if its current value equals expected.
	// It reports whether the key was deleted.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
}
