package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills continuously at rate tokens/sec up to burst and
// takes one token if available. Returns {allowed, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now_ms
end

local elapsed = now_ms - ts
if elapsed > 0 then
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
  ts = now_ms
end

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', key, ttl_ms)
return {allowed, retry_ms}
`)

// RedisRateLimiter shares token buckets across replicas through Redis.
type RedisRateLimiter struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.Scripter, prefix string, now func() time.Time) *RedisRateLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisRateLimiter{client: client, prefix: prefix, now: now}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration, error) {
	if l == nil || l.client == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0, nil
	}
	// Keep idle buckets around long enough to refill completely, then let them expire.
	ttl := time.Duration(float64(rule.Burst)/rule.Rate*float64(time.Second)) + time.Minute

	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + ":" + key},
		l.now().UnixMilli(), rule.Rate, rule.Burst, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply length %d", len(res))
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(res[1]) * time.Millisecond, nil
}
