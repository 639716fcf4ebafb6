package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustex/internal/ratelimit/models"
)

// RedisStore keeps each window as a sorted set scored by request time in
// microseconds, so every instance behind a load balancer shares the budget.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// allowScript trims the window, then admits the request if there is room.
// Returns {allowed, count, oldest}.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, math.ceil(window / 1000))
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {allowed, count, string.format('%d', first)}
`)

func (s *RedisStore) Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error) {
	raw, err := allowScript.Run(ctx, s.client, []string{key},
		now.UnixMicro(), limit.Window.Microseconds(), limit.Requests, uuid.NewString(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected script reply", key)
	}
	allowed, _ := raw[0].(int64)
	count, _ := raw[1].(int64)
	oldestRaw, _ := raw[2].(string)
	oldest, err := strconv.ParseInt(oldestRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: parse window start: %w", key, err)
	}
	resetAt := time.UnixMicro(oldest).Add(limit.Window)

	res := &models.Result{
		Allowed:   allowed == 1,
		Limit:     limit.Requests,
		Remaining: max(limit.Requests-int(count), 0),
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return res, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}
