package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
	"trustex/pkg/platform/sentinel"
)

const keyPrefix = "verification:cache:"

// RedisCache stores entries as JSON with a key TTL one TTL past the logical
// expiry, so reads still decide expiry against the caller's clock.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(companyID id.CompanyID) string {
	return keyPrefix + companyID.String()
}

func (c *RedisCache) Get(ctx context.Context, companyID id.CompanyID, now time.Time) (*models.CachedVerification, error) {
	raw, err := c.client.Get(ctx, cacheKey(companyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached verification: %w", err)
	}
	var entry models.CachedVerification
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Profile == nil {
		// Unreadable entries are dropped and treated as a miss.
		_ = c.client.Del(ctx, cacheKey(companyID)).Err()
		return nil, sentinel.ErrNotFound
	}
	if entry.Expired(now) {
		if err := c.client.Del(ctx, cacheKey(companyID)).Err(); err != nil {
			return nil, fmt.Errorf("evict expired verification: %w", err)
		}
		return nil, sentinel.ErrExpired
	}
	return &entry, nil
}

func (c *RedisCache) Put(ctx context.Context, profile *models.Profile, now time.Time) error {
	if profile == nil {
		return nil
	}
	raw, err := json.Marshal(models.CachedVerification{Profile: profile, CachedAt: now, TTL: c.ttl})
	if err != nil {
		return fmt.Errorf("marshal cached verification: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(profile.CompanyID), raw, 2*c.ttl).Err(); err != nil {
		return fmt.Errorf("put cached verification: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, companyID id.CompanyID) error {
	if err := c.client.Del(ctx, cacheKey(companyID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached verification: %w", err)
	}
	return nil
}

// PurgeExpired walks the cache keyspace with SCAN and removes expired entries.
func (c *RedisCache) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		companyID, err := id.ParseCompanyID(strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			continue
		}
		_, err = c.Get(ctx, companyID, now)
		switch {
		case errors.Is(err, sentinel.ErrExpired):
			removed++
		case err == nil, errors.Is(err, sentinel.ErrNotFound):
		default:
			return removed, err
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan verification cache: %w", err)
	}
	return removed, nil
}

func (c *RedisCache) TTL() time.Duration {
	return c.ttl
}
