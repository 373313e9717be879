package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/types"
)

const cacheKeyPrefix = "visited:"

// CachedStore is a read-through Redis cache in front of another VisitStore.
// Cache failures degrade to the inner store; the cache is never treated as
// authoritative.
type CachedStore struct {
	inner  VisitStore
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedStore wraps inner with a Redis cache.
func NewCachedStore(inner VisitStore, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Visited implements VisitStore.
func (c *CachedStore) Visited(ctx context.Context, user types.UserID) ([]types.CountryName, error) {
	key := cacheKeyPrefix + string(user)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var countries []types.CountryName
		if err := json.Unmarshal(cached, &countries); err == nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return countries, nil
		}
		c.logger.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		_ = c.client.Del(ctx, key).Err()
	case errors.Is(err, redis.Nil):
		// miss
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, falling through")
	}
	cacheLookups.WithLabelValues("miss").Inc()

	countries, err := c.inner.Visited(ctx, user)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(countries); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return countries, nil
}

// Add implements VisitStore. The cached entry is invalidated rather than
// patched so the next read re-derives truth from the inner store.
func (c *CachedStore) Add(ctx context.Context, user types.UserID, country types.CountryName) error {
	if err := c.inner.Add(ctx, user, country); err != nil {
		return err
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+string(user)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("user_id", string(user)).Msg("cache invalidation failed")
	}
	return nil
}

// Users implements VisitStore.
func (c *CachedStore) Users(ctx context.Context) ([]types.UserID, error) {
	return c.inner.Users(ctx)
}

// Close implements VisitStore.
func (c *CachedStore) Close() error { return c.inner.Close() }
