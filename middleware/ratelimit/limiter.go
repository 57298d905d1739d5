// Package ratelimit provides a Redis-based sliding window rate limiter and
// a Fiber middleware built on it, used to throttle login attempts per
// source address.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerWindow is the maximum number of requests allowed in the window.
	RequestsPerWindow int
	// WindowSize is the length of the sliding window.
	WindowSize time.Duration
	// KeyPrefix is the prefix for Redis keys.
	KeyPrefix string
}

// DefaultLoginConfig returns the login throttle configuration: five
// attempts per source address per minute.
func DefaultLoginConfig() Config {
	return Config{
		RequestsPerWindow: 5,
		WindowSize:        time.Minute,
		KeyPrefix:         "ratelimit:login:",
	}
}

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	Limit      int
}

// SlidingWindowLimiter implements a sliding window rate limiter using a
// Redis sorted set of request timestamps. The whole check-and-record step
// runs as one Lua script so concurrent requests cannot double-spend the
// window.
type SlidingWindowLimiter struct {
	client *redis.Client
	config Config
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(client *redis.Client, config Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		config: config,
	}
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_size_ms = tonumber(ARGV[4])

	-- Remove old entries outside the window
	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	-- Count current entries
	local count = redis.call('ZCARD', key)

	if count < limit then
		-- Use atomic counter for unique member ID (prevents collision)
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		-- Expire both keys so idle clients clean up automatically
		redis.call('PEXPIRE', key, window_size_ms)
		redis.call('PEXPIRE', counter_key, window_size_ms)
		return {1, limit - count - 1, 0}
	else
		-- Oldest entry determines when capacity frees up
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local retry_after = 0
		if #oldest >= 2 then
			retry_after = oldest[2] + window_size_ms - now
		end
		return {0, 0, retry_after}
	end
`)

// Allow checks if a request identified by key is allowed under the limit.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-l.config.WindowSize)
	redisKey := l.config.KeyPrefix + key
	counterKey := redisKey + ":counter"

	result, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, counterKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.config.RequestsPerWindow,
		l.config.WindowSize.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result length: %d", len(result))
	}

	return &Result{
		Allowed:    result[0] == 1,
		Remaining:  int(result[1]),
		RetryAfter: time.Duration(result[2]) * time.Millisecond,
		Limit:      l.config.RequestsPerWindow,
	}, nil
}

// Reset clears the rate limit state for a specific key.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	redisKey := l.config.KeyPrefix + key
	return l.client.Del(ctx, redisKey, redisKey+":counter").Err()
}
