package stampede_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veartutop/stampede"
)

func TestLock_AcquireRelease(t *testing.T) {
	store := stampede.NewMemory()
	defer store.Close()

	ctx := context.Background()
	l := stampede.Lock{Store: store, Key: "lock:k", TTL: time.Minute}

	token, acquired, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)
	assert.NotEmpty(t, token)

	_, acquired, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, l.Release(ctx, token))

	_, acquired, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLock_Release_notOwned(t *testing.T) {
	store := stampede.NewMemory()
	defer store.Close()

	ctx := context.Background()
	l := stampede.Lock{Store: store, Key: "lock:k", TTL: time.Minute}

	token, acquired, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	err = l.Release(ctx, "stranger-token")
	assert.ErrorIs(t, err, stampede.ErrLockNotHeld)

	// Owner still holds the lock.
	_, acquired, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, l.Release(ctx, token))
}

func TestLock_expiredAndReacquired(t *testing.T) {
	store := stampede.NewMemory()
	defer store.Close()

	ctx := context.Background()
	l := stampede.Lock{Store: store, Key: "lock:k", TTL: 10 * time.Millisecond}

	first, acquired, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	second, acquired, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired, "expired lock is free for the taking")

	// The previous owner must not delete the new owner's lock.
	err = l.Release(ctx, first)
	assert.ErrorIs(t, err, stampede.ErrLockNotHeld)

	got, err := store.Get(ctx, "lock:k")
	require.NoError(t, err)
	assert.Equal(t, []byte(second), got)
}
