package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and deducts in one round trip so concurrent
// callers sharing a key cannot lose updates. The current time is passed in
// as an argument rather than read via TIME, keeping the script a pure
// function of its inputs.
//
// KEYS[1] bucket key
// ARGV[1] capacity, ARGV[2] refill rate (tokens/ms), ARGV[3] now (ms),
// ARGV[4] cost, ARGV[5] key TTL (ms)
//
// Returns {allowed, tokens-as-string, retry-after-ms}.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

local elapsed = now - ts
if elapsed > 0 then
	tokens = math.min(capacity, tokens + elapsed * rate)
end

local allowed = 0
if tokens >= cost then
	tokens = tokens - cost
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)

local wait = 0
if allowed == 0 then
	wait = math.ceil((cost - tokens) / rate)
end

return {allowed, tostring(tokens), wait}
`)

// RedisLimiter is a token bucket whose state lives entirely in Redis, so a
// single quota is enforced across every process sharing the store.
type RedisLimiter struct {
	client *redis.Client
	quota  Quota
	now    func() time.Time
}

// RedisLimiterOption configures a RedisLimiter.
type RedisLimiterOption func(*RedisLimiter)

// WithClock overrides the limiter's clock; used by tests.
func WithClock(now func() time.Time) RedisLimiterOption {
	return func(l *RedisLimiter) { l.now = now }
}

// NewRedisLimiter creates a Redis-backed token bucket limiter.
func NewRedisLimiter(client *redis.Client, quota Quota, opts ...RedisLimiterOption) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		quota:  quota,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit atomically checks and deducts cost tokens for key. When the bucket
// holds fewer than cost tokens nothing is deducted and Limited is true.
// A store failure is returned as an error; the caller owns the
// fail-open/fail-closed decision.
func (l *RedisLimiter) Limit(ctx context.Context, key string, cost int) (Result, error) {
	nowMilli := l.now().UnixMilli()
	ttl := 2 * l.quota.Period.Milliseconds()

	raw, err := tokenBucketScript.Run(ctx, l.client, []string{key},
		l.quota.Limit,
		strconv.FormatFloat(l.quota.ratePerMilli(), 'f', -1, 64),
		nowMilli,
		cost,
		ttl,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit store: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 3 {
		return Result{}, fmt.Errorf("rate limit store: unexpected reply %v", raw)
	}

	allowed, _ := reply[0].(int64)
	tokensStr, _ := reply[1].(string)
	waitMilli, _ := reply[2].(int64)

	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit store: parse tokens %q: %w", tokensStr, err)
	}

	return Result{
		Limited:    allowed == 0,
		Remaining:  int(math.Floor(tokens)),
		RetryAfter: time.Duration(waitMilli) * time.Millisecond,
	}, nil
}
