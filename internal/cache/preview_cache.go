package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// previewTTL keeps preview payloads around long enough for an operator
// to inspect and trigger a run, without serving stale listings all day.
const previewTTL = 5 * time.Minute

// ErrCacheMiss is returned when no cached payload exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// PreviewCache stores JSON-encoded file previews so repeated operator
// clicks do not re-download the same remote file.
type PreviewCache struct {
	redis *RedisClient
}

// NewPreviewCache creates a PreviewCache on top of the shared client.
func NewPreviewCache(redis *RedisClient) *PreviewCache {
	return &PreviewCache{redis: redis}
}

func previewKey(providerID int, remotePath string) string {
	return fmt.Sprintf("tariff:preview:%d:%s", providerID, remotePath)
}

// Set stores one preview payload.
func (c *PreviewCache) Set(ctx context.Context, providerID int, remotePath string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal preview: %w", err)
	}
	return c.redis.Set(ctx, previewKey(providerID, remotePath), string(data), previewTTL)
}

// Get loads a cached preview into dst. Returns ErrCacheMiss when absent
// or expired.
func (c *PreviewCache) Get(ctx context.Context, providerID int, remotePath string, dst interface{}) error {
	raw, err := c.redis.Get(ctx, previewKey(providerID, remotePath))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(raw), dst)
}

// Invalidate drops the cached preview for one file.
func (c *PreviewCache) Invalidate(ctx context.Context, providerID int, remotePath string) error {
	return c.redis.Delete(ctx, previewKey(providerID, remotePath))
}
