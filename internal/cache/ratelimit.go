package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter scopes. Each scope keeps its own counters for the same subject.
const (
	LimitScopeAuth = "auth"
	LimitScopeRPC  = "rpc"
)

// Limit is an allowance of Burst requests refilled at one request per Interval.
type Limit struct {
	Interval time.Duration
	Burst    int
}

// PerSecond allows n requests per second with the given burst.
func PerSecond(n, burst int) Limit {
	if n <= 0 {
		return Limit{}
	}
	return Limit{Interval: time.Second / time.Duration(n), Burst: burst}
}

// PerMinute allows n requests per minute with the given burst.
func PerMinute(n, burst int) Limit {
	if n <= 0 {
		return Limit{}
	}
	return Limit{Interval: time.Minute / time.Duration(n), Burst: burst}
}

// Unlimited reports whether the limit lets everything through.
func (l Limit) Unlimited() bool {
	return l.Interval <= 0 || l.Burst <= 0
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// gcraScript keeps one theoretical arrival time (TAT) per key, in
// milliseconds. A request is admitted while the TAT stays within
// burst*interval of now.
var gcraScript = redis.NewScript(`
local key = KEYS[1]
local interval = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tolerance = interval * burst
local tat = tonumber(redis.call('GET', key) or now)
if tat < now then
	tat = now
end

local next_tat = tat + interval
local allow_at = next_tat - tolerance
if now < allow_at then
	return {0, allow_at - now, 0, tat - now}
end

redis.call('SET', key, next_tat, 'PX', next_tat - now)
local remaining = math.floor((tolerance - (next_tat - now)) / interval)
return {1, 0, remaining, next_tat - now}
`)

// Allow spends one request of subject's allowance within scope.
// Subjects are hashed before they become part of a key.
func (c *Cache) Allow(ctx context.Context, scope, subject string, limit Limit) (*RateLimitResult, error) {
	now := c.now()
	if limit.Unlimited() {
		return &RateLimitResult{Allowed: true, Remaining: -1, ResetAt: now}, nil
	}

	interval := max(limit.Interval.Milliseconds(), 1)
	res, err := gcraScript.Run(ctx, c.client,
		[]string{c.key("rl", scope, subjectHash(subject))},
		interval, limit.Burst, now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", scope, err)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
	}, nil
}

func subjectHash(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}
