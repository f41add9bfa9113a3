// Package cache provides a Redis-backed product cache keyed by product URL.
// A cache hit skips the entire acquisition chain, so the TTL bounds how stale
// a served price can be.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricewatch/mercadolivre-scraper/internal/models"
)

const keyPrefix = "pricewatch:product:"

// Cache stores extracted products in Redis with a fixed TTL. A nil *Cache is
// a valid no-op cache, which lets callers wire it unconditionally.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger.With("component", "cache")}, nil
}

// Key derives a stable cache key from a product URL. Hashing keeps arbitrary
// URLs within Redis key length limits.
func Key(productURL string) string {
	sum := sha256.Sum256([]byte(productURL))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Get returns the cached product for the URL, or nil on a miss. Redis errors
// are logged and treated as misses; the scrape path must not fail because the
// cache is down.
func (c *Cache) Get(ctx context.Context, productURL string) *models.Product {
	if c == nil {
		return nil
	}

	raw, err := c.rdb.Get(ctx, Key(productURL)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", "url", productURL, "error", err)
		}
		return nil
	}

	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "url", productURL, "error", err)
		return nil
	}
	return &product
}

// Set stores the product under the URL's key. Failures are logged, never
// propagated.
func (c *Cache) Set(ctx context.Context, productURL string, product *models.Product) {
	if c == nil || product == nil {
		return
	}

	raw, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("cache encode failed", "url", productURL, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, Key(productURL), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "url", productURL, "error", err)
	}
}

// Close releases the Redis connection. Safe on a nil cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
