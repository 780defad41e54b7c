package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/logger"
)

const keyPrefix = "mfagate:attempts:"

// Atomic token bucket. Returns {allowed, remaining, capacity, reset_ms}.
const tokenBucketLuaScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

-- rate is per second, elapsed in ms
local elapsed = now - last_refill
tokens = math.min(tokens + elapsed * rate / 1000, capacity)

local allowed = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
end

local reset_ms = 0
if tokens < capacity then
    reset_ms = math.ceil((capacity - tokens) / rate * 1000)
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', key, reset_ms + 60000)

return {allowed, math.floor(tokens), math.floor(capacity), reset_ms}
`

var tokenBucketScript = redis.NewScript(tokenBucketLuaScript)

// bucketConfig turns "attempts per window" into a bucket that starts full and refills evenly.
func bucketConfig(cfg config.RateLimitConfig) TokenBucketConfig {
	return TokenBucketConfig{
		Capacity: float64(cfg.CodeAttempts),
		Rate:     float64(cfg.CodeAttempts) / window(cfg).Seconds(),
	}
}

func window(cfg config.RateLimitConfig) time.Duration {
	if cfg.Window <= 0 {
		return 5 * time.Minute
	}
	return cfg.Window
}

// LocalAttemptLimiter keeps per-user buckets in process memory.
type LocalAttemptLimiter struct {
	pool    *TokenBucketPool
	maxIdle time.Duration

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewLocalAttemptLimiter creates a limiter allowing cfg.CodeAttempts codes per cfg.Window.
func NewLocalAttemptLimiter(cfg config.RateLimitConfig) *LocalAttemptLimiter {
	return &LocalAttemptLimiter{
		pool:        NewTokenBucketPool(bucketConfig(cfg)),
		maxIdle:     window(cfg),
		lastCleanup: time.Now(),
	}
}

// Allow implements service.CodeAttemptLimiter.
func (l *LocalAttemptLimiter) Allow(_ context.Context, username string) (bool, error) {
	l.cleanup()
	return l.pool.GetOrCreate(username).Allow(), nil
}

// Reset forgets the bucket of username.
func (l *LocalAttemptLimiter) Reset(_ context.Context, username string) error {
	l.pool.Remove(username)
	return nil
}

// An idle bucket has refilled completely, so dropping it changes nothing.
func (l *LocalAttemptLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < l.maxIdle {
		return
	}
	l.lastCleanup = time.Now()
	l.pool.Cleanup(l.maxIdle)
}

// RedisAttemptLimiter shares per-user buckets across instances through Redis.
// When Redis cannot be reached the decision falls back to a local bucket.
type RedisAttemptLimiter struct {
	client   redis.UniversalClient
	capacity float64
	rate     float64
	local    *LocalAttemptLimiter
	logger   logger.Logger
	now      func() time.Time
}

// NewRedisAttemptLimiter creates a distributed limiter allowing cfg.CodeAttempts codes per cfg.Window.
func NewRedisAttemptLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, log logger.Logger) *RedisAttemptLimiter {
	bc := bucketConfig(cfg)
	return &RedisAttemptLimiter{
		client:   client,
		capacity: bc.Capacity,
		rate:     bc.Rate,
		local:    NewLocalAttemptLimiter(cfg),
		logger:   log.WithComponent("attempt_limiter"),
		now:      time.Now,
	}
}

// Allow implements service.CodeAttemptLimiter.
func (l *RedisAttemptLimiter) Allow(ctx context.Context, username string) (bool, error) {
	res, err := tokenBucketScript.Run(ctx, l.client, []string{keyPrefix + username},
		l.capacity, l.rate, 1, l.now().UnixMilli()).Int64Slice()
	if err != nil {
		l.logger.Warn(ctx, "Attempt limiter unavailable, using local bucket",
			logger.String("username", username), logger.Any("error", err.Error()))
		return l.local.Allow(ctx, username)
	}
	if len(res) == 0 {
		return false, fmt.Errorf("unexpected token bucket reply")
	}
	return res[0] == 1, nil
}

// Reset forgets the bucket of username in Redis and locally.
func (l *RedisAttemptLimiter) Reset(ctx context.Context, username string) error {
	_ = l.local.Reset(ctx, username)
	if err := l.client.Del(ctx, keyPrefix+username).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("reset attempt limit: %w", err)
	}
	return nil
}

// NewAttemptLimiter selects the limiter for cfg. A nil client selects the local limiter and a
// zero attempt budget disables limiting.
func NewAttemptLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, log logger.Logger) service.CodeAttemptLimiter {
	if cfg.CodeAttempts <= 0 {
		return nil
	}
	if client == nil {
		return NewLocalAttemptLimiter(cfg)
	}
	return NewRedisAttemptLimiter(client, cfg, log)
}

//Personal.AI order the ending
