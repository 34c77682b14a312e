// Package geoloc caches each owner's last-known location in Redis with an
// explicit TTL. Staleness is decided by the cache entry's expiry, not by a
// process-wide global, so behavior is the same across instances and
// testable with a fake store.
package geoloc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"verda/models"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 10 * time.Minute

// Store is the slice of the redis client the cache needs; tests plug in a
// fake built from redis.NewStringResult / redis.NewStatusCmd.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type Cache struct {
	Store Store
	TTL   time.Duration
}

func New(store Store) *Cache {
	return &Cache{Store: store, TTL: DefaultTTL}
}

func key(ownerID string) string {
	return "geoloc:last:" + ownerID
}

// Set records the owner's current location.
func (c *Cache) Set(ctx context.Context, ownerID string, pt models.GeoPoint) error {
	data, err := json.Marshal(pt)
	if err != nil {
		return err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.Store.Set(ctx, key(ownerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache location: %w", err)
	}
	return nil
}

// Get returns the cached location, or ok=false when the entry is missing
// or expired.
func (c *Cache) Get(ctx context.Context, ownerID string) (models.GeoPoint, bool, error) {
	val, err := c.Store.Get(ctx, key(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.GeoPoint{}, false, nil
	}
	if err != nil {
		return models.GeoPoint{}, false, fmt.Errorf("read cached location: %w", err)
	}

	var pt models.GeoPoint
	if err := json.Unmarshal([]byte(val), &pt); err != nil {
		return models.GeoPoint{}, false, fmt.Errorf("decode cached location: %w", err)
	}
	return pt, true, nil
}
