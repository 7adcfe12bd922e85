package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the key is already held by another
// run.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only when it still carries our token,
// so an expired-and-reacquired lock is never released by the old
// holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker hands out exclusive, TTL-bounded keyed locks backed by Redis
// SET NX. One lock per provider keeps runs from overlapping.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock is one held lock. Release is safe to call once per acquisition.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire takes the named lock or fails fast with ErrNotAcquired.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := "tariff:lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lock{locker: l, key: key, token: token}, nil
}

// Release frees the lock if this holder still owns it.
func (lk *Lock) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Result()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	if n, _ := res.(int64); n == 0 {
		return fmt.Errorf("release lock %s: not held anymore", lk.key)
	}
	return nil
}
