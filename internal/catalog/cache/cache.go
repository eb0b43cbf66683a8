// Package cache holds catalog list results in Redis. Every write bumps a
// per-kind version key, so stale pages are never read again and simply expire.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "corretaje:catalog:"

// Redis caches catalog pages. Failures are logged and treated as misses.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Load decodes the cached page into dst and reports whether it was found.
// The returned key pins the version seen here. Pass it to Store so a page
// built before a concurrent write is filed under the old version. An empty
// key means the version could not be read and the page must not be stored.
func (c *Redis) Load(ctx context.Context, kind string, skip, limit int, dst any) (string, bool) {
	key, err := c.pageKey(ctx, kind, skip, limit)
	if err != nil {
		c.warn(ctx, "catalog cache version lookup failed", kind, err)
		return "", false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return key, false
	}
	if err != nil {
		c.warn(ctx, "catalog cache read failed", kind, err)
		return key, false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.warn(ctx, "catalog cache entry is corrupt", kind, err)
		return key, false
	}
	return key, true
}

// Store writes v under a key returned by Load.
func (c *Redis) Store(ctx context.Context, key string, v any) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.warnKey(ctx, "catalog cache encode failed", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warnKey(ctx, "catalog cache write failed", key, err)
	}
}

// Invalidate bumps the kind's version.
func (c *Redis) Invalidate(ctx context.Context, kind string) {
	if err := c.client.Incr(ctx, versionKey(kind)).Err(); err != nil {
		c.warn(ctx, "catalog cache invalidation failed", kind, err)
	}
}

func (c *Redis) pageKey(ctx context.Context, kind string, skip, limit int) (string, error) {
	version, err := c.client.Get(ctx, versionKey(kind)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s%s:v%d:%d:%d", keyPrefix, kind, version, skip, limit), nil
}

func (c *Redis) warn(ctx context.Context, msg, kind string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "kind", kind, "error", err)
	}
}

func (c *Redis) warnKey(ctx context.Context, msg, key string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "key", key, "error", err)
	}
}

func versionKey(kind string) string {
	return keyPrefix + kind + ":version"
}
