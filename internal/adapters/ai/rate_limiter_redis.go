package ai

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"marketresearch/pkg/errors"
)

// RedisRateLimiter shares one token bucket across every instance pointed at the same Redis.
type RedisRateLimiter struct {
	client *redis.Client
	rate   float64 // tokens per second
	burst  int
	key    string
	script *redis.Script
	now    func() time.Time
}

// KEYS[1] bucket hash; ARGV rate, burst, now (seconds). Returns 1 when a token was taken.
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

tokens = math.min(burst, tokens + math.max(0, now - last_update) * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, 3600)

return allowed
`

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client *redis.Client, provider ProviderName, reqPerMinute float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		rate:   reqPerMinute / 60.0,
		burst:  normalizeBurst(reqPerMinute, burst),
		key:    fmt.Sprintf("rate_limit:ai:%s", provider),
		script: redis.NewScript(luaTokenBucketScript),
		now:    time.Now,
	}
}

// Wait polls the shared bucket until a token is granted or ctx ends.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / l.rate)
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter %s", l.key)
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "rate limiter wait cancelled")
		case <-time.After(interval):
		}
	}
}

// Allow checks if a request can proceed without blocking. Redis failures deny.
func (l *RedisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	allowed, err := l.tryAcquire(ctx)
	return err == nil && allowed
}

// Limit returns the current rate limit in requests per minute.
func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

// Reset clears the bucket.
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

// Tokens reports the stored token count, or the full burst when the bucket is untouched.
func (l *RedisRateLimiter) Tokens(ctx context.Context) (float64, error) {
	raw, err := l.client.HGet(ctx, l.key, "tokens").Result()
	if errors.Is(err, redis.Nil) {
		return float64(l.burst), nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read rate limiter tokens")
	}
	return strconv.ParseFloat(raw, 64)
}

func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(l.now().UnixNano()) / float64(time.Second)

	result, err := l.script.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int()
	if err != nil {
		return false, errors.Wrap(err, "failed to execute token bucket script")
	}

	return result == 1, nil
}
