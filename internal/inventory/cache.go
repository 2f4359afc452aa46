package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const bumpChannel = "inventory.bump"

// Cache keeps computed snapshots in Redis under per-owner version keys.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the snapshot cache.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func versionKey(owner string) string {
	return "inventory:version:" + owner
}

// Version returns the owner's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, owner string) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(owner), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(owner)).Int64()
	}
	return ver, err
}

func (c *Cache) snapshotKey(ctx context.Context, owner string) (string, error) {
	ver, err := c.Version(ctx, owner)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("inventory:snapshot:%s:%d", owner, ver), nil
}

// Fetch loads the cached snapshot or populates it using load. Redis failures
// fall back to load so reads keep working while the cache is down.
func (c *Cache) Fetch(ctx context.Context, owner string, load func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key, err := c.snapshotKey(ctx, owner)
	if err != nil {
		c.logger.Warn("snapshot cache version", slog.String("owner", owner), slog.Any("error", err))
		return load(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var snap Snapshot
		decodeErr := json.Unmarshal(payload, &snap)
		if decodeErr == nil {
			return snap, nil
		}
		c.logger.Warn("snapshot cache decode", slog.String("key", key), slog.Any("error", decodeErr))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("snapshot cache read", slog.String("key", key), slog.Any("error", err))
		return load(ctx)
	}
	snap, err := load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.set(ctx, key, snap); err != nil {
		c.logger.Warn("snapshot cache write", slog.String("key", key), slog.Any("error", err))
	}
	return snap, nil
}

// Refresh recomputes the owner's snapshot with load and stores it under the
// version read before loading. A mutation committed during the load bumps the
// version, so the result never shadows the newer state.
func (c *Cache) Refresh(ctx context.Context, owner string, load func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key, err := c.snapshotKey(ctx, owner)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.set(ctx, key, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Cache) set(ctx context.Context, key string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the owner's version and announces it on the bump channel.
func (c *Cache) Invalidate(ctx context.Context, owner string) error {
	if c == nil || c.client == nil {
		return nil
	}
	// Start from 1 so the first bump never lands on the version a reader may have just used.
	if err := c.client.SetNX(ctx, versionKey(owner), 1, 0).Err(); err != nil {
		return err
	}
	if err := c.client.Incr(ctx, versionKey(owner)).Err(); err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, owner).Err()
}
