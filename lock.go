package stampede

import (
	"context"
	"time"

	"github.com/bool64/ctxd"
	"github.com/google/uuid"
)

// Lock is a distributed mutual exclusion helper on top of a shared Store key.
//
// Ownership is tracked with a random token: acquisition stores the token with
// set-if-absent, release deletes the key only while it still holds that
// token. The ttl bounds how long a crashed or hung holder can stall everyone
// else.
type Lock struct {
	// Store holds the lock key, required.
	Store Store

	// Key is the lock key, required.
	Key string

	// TTL is the lock expiry, a holder exceeding it is presumed dead.
	TTL time.Duration

	// Logger collects messages with context, can be nil.
	Logger ctxd.Logger
}

// Acquire attempts to take the lock, returning an owner token on success.
//
// A false result with nil error means the lock is currently owned by someone
// else, which is not an error but a signal to back off.
func (l Lock) Acquire(ctx context.Context) (token string, acquired bool, err error) {
	token = uuid.NewString()

	acquired, err = l.Store.SetNX(ctx, l.Key, []byte(token), l.TTL)
	if err != nil {
		return "", false, ctxd.WrapError(ctx, err, "failed to acquire lock", "key", l.Key)
	}

	if !acquired {
		return "", false, nil
	}

	if l.Logger != nil {
		l.Logger.Debug(ctx, "lock acquired", "key", l.Key, "token", token)
	}

	return token, true, nil
}

// Release frees the lock if token still owns it.
//
// ErrLockNotHeld is returned when the stored token differs, which happens
// after the lock expired and was re-acquired by another owner. Such a lock
// belongs to the new owner and is left in place.
func (l Lock) Release(ctx context.Context, token string) error {
	deleted, err := l.Store.CompareAndDelete(ctx, l.Key, []byte(token))
	if err != nil {
		return ctxd.WrapError(ctx, err, "failed to release lock", "key", l.Key)
	}

	if !deleted {
		if l.Logger != nil {
			l.Logger.Warn(ctx, "lock ownership lost before release", "key", l.Key, "token", token)
		}

		return ErrLockNotHeld
	}

	return nil
}
