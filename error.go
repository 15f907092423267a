package stampede

import "github.com/swaggest/usecase/status"

// SentinelError is an error.
type SentinelError string

const (
	// ErrKeyNotFound indicates missing store key.
	ErrKeyNotFound = SentinelError("missing store key")

	// ErrLockNotHeld indicates a lock release without current ownership.
	ErrLockNotHeld = SentinelError("lock not held")

	// ErrNothingToInvalidate indicates no callbacks were added to Invalidator.
	ErrNothingToInvalidate = SentinelError("nothing to invalidate")

	// ErrAlreadyInvalidated indicates recent invalidation.
	ErrAlreadyInvalidated = SentinelError("already invalidated")
)

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}

var (
	// ErrUpstreamUnavailable indicates a failed upstream fetch with no cached value to fall back on.
	ErrUpstreamUnavailable = status.Wrap(SentinelError("upstream unavailable and no cached value"), status.Unavailable)

	// ErrDataUnavailable indicates a refresh owned elsewhere with no cached value to serve meanwhile.
	ErrDataUnavailable = status.Wrap(SentinelError("refresh in progress and no cached value"), status.Unavailable)
)
