package stampede_test

import (
	"context"
	"testing"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veartutop/stampede"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	st := stats.TrackerMock{}

	// Janitor intervals are left at their defaults so that the expired entry
	// stays observable as expired instead of being deleted mid-test.
	s := stampede.NewMemory(stampede.MemoryConfig{
		Name:   "test",
		Stats:  &st,
		Logger: ctxd.NoOpLogger{},
	})
	defer s.Close()

	_, err := s.Get(ctx, "key")
	assert.ErrorIs(t, err, stampede.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "key", []byte("v"), 10*time.Millisecond))

	got, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// Expired.
	time.Sleep(15 * time.Millisecond)

	_, err = s.Get(ctx, "key")
	assert.ErrorIs(t, err, stampede.ErrKeyNotFound)

	assert.Equal(t, 1, st.Int(stampede.MetricMiss))
	assert.Equal(t, 1, st.Int(stampede.MetricHit))
	assert.Equal(t, 1, st.Int(stampede.MetricWrite))
	assert.Equal(t, 1, st.Int(stampede.MetricExpired))
}

func TestMemory_janitor(t *testing.T) {
	ctx := context.Background()

	s := stampede.NewMemory(stampede.MemoryConfig{
		DeleteExpiredJobInterval: 5 * time.Millisecond,
	})
	defer s.Close()

	require.NoError(t, s.Set(ctx, "key", []byte("v"), 10*time.Millisecond))
	assert.Equal(t, 1, s.Len())

	// Deleted by the janitor after expiry.
	assert.Eventually(t, func() bool {
		return s.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemory_noExpiry(t *testing.T) {
	ctx := context.Background()

	s := stampede.NewMemory()
	defer s.Close()

	require.NoError(t, s.Set(ctx, "key", []byte("v"), 0))

	got, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, s.Len())

	s.RemoveAll()
	assert.Equal(t, 0, s.Len())
}
