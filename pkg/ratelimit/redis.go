package ratelimit

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript checks then increments one window counter atomically. A call
// at the limit must not increment, so the count is read before INCR.
var windowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if count >= limit then
	return {0, count, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter shares window counters across gateway replicas. When the
// backend is unreachable it fails open: a broken limiter must not take the
// gateway down with it.
type RedisLimiter struct {
	policies
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, def Policy, overrides map[string]Policy, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		policies: policies{def: def, overrides: maps.Clone(overrides)},
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, integration, tenant string) Decision {
	policy := l.policyFor(integration)
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: true, Limit: policy.Limit}
	}

	key := "ratelimit:" + integration + ":" + tenant
	res, err := windowScript.Run(ctx, l.client, []string{key},
		policy.Limit, policy.Window.Milliseconds()).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			"integration", integration, "error", err)
		return Decision{Allowed: true, Limit: policy.Limit}
	}
	vals, ok := res.([]any)
	if !ok || len(vals) != 3 {
		l.logger.Warn("rate limit script returned unexpected reply, allowing request",
			"integration", integration)
		return Decision{Allowed: true, Limit: policy.Limit}
	}

	allowed := asInt64(vals[0]) == 1
	count := int(asInt64(vals[1]))
	ttl := time.Duration(asInt64(vals[2])) * time.Millisecond
	if ttl <= 0 {
		ttl = policy.Window
	}
	remaining := policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     policy.Limit,
		Count:     count,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}
}

func asInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}
