package stampede_test

import (
	"context"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veartutop/stampede"
)

func TestInvalidator_Invalidate(t *testing.T) {
	store := stampede.NewMemory()
	defer store.Close()

	ctx := context.Background()
	fetches := &xsync.Counter{}

	c, err := stampede.New(baseConfig(store), func(ctx context.Context) (string, error) {
		fetches.Inc()

		return "v", nil
	})
	require.NoError(t, err)

	i := &stampede.Invalidator{SkipInterval: time.Minute}

	err = i.Invalidate()
	assert.ErrorIs(t, err, stampede.ErrNothingToInvalidate)

	i.Callbacks = append(i.Callbacks, c.InvalidationCallback())

	_, err = c.Read(ctx)
	require.NoError(t, err)

	_, err = c.Read(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fetches.Value())

	require.NoError(t, i.Invalidate())

	// Invalidated entry is refreshed on the next read.
	v, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.EqualValues(t, 2, fetches.Value())

	err = i.Invalidate()
	assert.ErrorIs(t, err, stampede.ErrAlreadyInvalidated)
}
