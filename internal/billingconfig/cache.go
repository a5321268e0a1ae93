package billingconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "billingconfig:current"
	// cacheGenKey is bumped on every invalidation. Entries are keyed by
	// generation, so a load that started before an update writes to a key
	// no reader consults again.
	cacheGenKey = "billingconfig:generation"
)

func entryKey(gen int64) string {
	return fmt.Sprintf("%s:%d", cacheKeyPrefix, gen)
}

// Cache keeps the resolved configuration in Redis. A nil *Cache or a nil client
// disables caching; Redis failures degrade to the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Fetch returns the cached configuration or populates it using loader.
// Concurrent misses within one generation share one loader call.
func (c *Cache) Fetch(ctx context.Context, loader func(context.Context) (*Config, error)) (*Config, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	gen, err := c.client.Get(ctx, cacheGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("billing config cache generation", slog.Any("error", err))
		return loader(ctx)
	}
	key := entryKey(gen)

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cfg Config
		jerr := json.Unmarshal(payload, &cfg)
		if jerr == nil {
			return &cfg, nil
		}
		c.logger.Warn("billing config cache decode", slog.Any("error", jerr))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("billing config cache get", slog.Any("error", err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		cfg, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(cfg)
		if err == nil {
			if serr := c.client.Set(ctx, key, raw, c.ttl).Err(); serr != nil {
				c.logger.Warn("billing config cache set", slog.Any("error", serr))
			}
		}
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	cfg := *v.(*Config)
	return &cfg, nil
}

// Invalidate starts a new generation and drops the previous entry.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	gen, err := c.client.Incr(ctx, cacheGenKey).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, entryKey(gen-1)).Err()
}
