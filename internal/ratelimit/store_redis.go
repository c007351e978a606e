package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims, counts and records in one round trip so racing
// instances cannot both take the last slot.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {allowed, count, first}
`)

// RedisStore shares windows across instances using one sorted set per key.
type RedisStore struct {
	client redis.Scripter
	prefix string
	clock  func() time.Time
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client, prefix: "offsetledger:rl:", clock: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	now := s.clock()
	vals, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), limit.Window.Milliseconds(), limit.Requests, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply %v", vals)
	}

	resetAt := time.UnixMilli(vals[2]).Add(limit.Window)
	res := &Result{
		Allowed: vals[0] == 1,
		Limit:   limit.Requests,
		ResetAt: resetAt,
	}
	if res.Allowed {
		res.Remaining = limit.Requests - int(vals[1])
	} else {
		res.RetryAfter = retryAfter(now, resetAt)
	}
	return res, nil
}
