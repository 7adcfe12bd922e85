package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	locker, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	lk, err := locker.Acquire(ctx, "provider:1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "provider:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	// A different provider is unaffected.
	other, err := locker.Acquire(ctx, "provider:2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lk.Release(ctx))
	_, err = locker.Acquire(ctx, "provider:1")
	assert.NoError(t, err)
}

func TestReleaseAfterExpiryDoesNotStealNewHolder(t *testing.T) {
	locker, mr := newTestLocker(t, time.Minute)
	ctx := context.Background()

	old, err := locker.Acquire(ctx, "provider:1")
	require.NoError(t, err)

	// TTL elapses, another run takes the lock.
	mr.FastForward(2 * time.Minute)
	fresh, err := locker.Acquire(ctx, "provider:1")
	require.NoError(t, err)

	// The stale holder must not free the new holder's lock.
	assert.Error(t, old.Release(ctx))
	assert.NoError(t, fresh.Release(ctx))
}
