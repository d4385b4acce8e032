package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window limiter shared by every server instance.
// Redis errors fail open: the request is allowed and the error logged.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// NewRedisRateLimiter creates a limiter allowing limit requests per window per key.
// PRE: rdb is connected (or will be; failures fail open)
// POST: zero or negative limit/window fall back to 60 per minute
func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ministry:rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

// Allow increments the key's counter for the current window.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	count, err := rl.incr(ctx, rl.prefix+":"+key)
	if err != nil {
		slog.Warn("redis_rate_limit_error", "error", err)
		return true
	}
	if count > int64(rl.limit) {
		slog.Warn("rate_limit_exceeded", "ip", key, "count", count)
		return false
	}
	return true
}

func (rl *RedisRateLimiter) incr(ctx context.Context, key string) (int64, error) {
	res, err := fixedWindowScript.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}

var _ Limiter = (*RedisRateLimiter)(nil)
var _ Limiter = (*RateLimiter)(nil)
