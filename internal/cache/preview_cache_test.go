package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPreviewCache(t *testing.T) *PreviewCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPreviewCache(&RedisClient{client: client})
}

func TestPreviewCacheRoundTrip(t *testing.T) {
	c := newTestPreviewCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, "in/tarif.csv", []string{"a", "b"}))

	var rows []string
	require.NoError(t, c.Get(ctx, 1, "in/tarif.csv", &rows))
	assert.Equal(t, []string{"a", "b"}, rows)

	// Another provider's preview of the same path is a distinct key.
	err := c.Get(ctx, 2, "in/tarif.csv", &rows)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPreviewCacheInvalidate(t *testing.T) {
	c := newTestPreviewCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 1, "in/tarif.csv", []string{"a"}))
	require.NoError(t, c.Invalidate(ctx, 1, "in/tarif.csv"))

	var rows []string
	err := c.Get(ctx, 1, "in/tarif.csv", &rows)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
