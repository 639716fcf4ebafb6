package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"trustex/internal/dependents/models"
)

const dependentsKey = "dependents"

// RedisStore keeps dependents in a hash of address → registration time so
// every instance behind the same Redis shares one set.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Add(ctx context.Context, address string, at time.Time) (bool, error) {
	added, err := s.client.HSetNX(ctx, dependentsKey, address, at.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("add dependent: %w", err)
	}
	return added, nil
}

func (s *RedisStore) Remove(ctx context.Context, address string) (bool, error) {
	n, err := s.client.HDel(ctx, dependentsKey, address).Result()
	if err != nil {
		return false, fmt.Errorf("remove dependent: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.Dependent, error) {
	entries, err := s.client.HGetAll(ctx, dependentsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	out := make([]models.Dependent, 0, len(entries))
	for addr, raw := range entries {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			// Unreadable timestamps keep the dependent; only the time is lost.
			at = time.Time{}
		}
		out = append(out, models.Dependent{Address: addr, RegisteredAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}
