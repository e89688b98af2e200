package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowTTL keeps a window alive slightly past its second so late INCRs still expire.
const redisWindowTTL = 2 * time.Second

// redisConsumeScript increments the window counter and arms its expiry on first use.
var redisConsumeScript = redis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return used
`)

// RedisLimiter counts requests per key in fixed one-second windows shared through Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter that namespaces keys under prefix.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow consumes one request from the window containing now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if l == nil || l.client == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	start := now.Unix()
	reset := time.Unix(start+1, 0).UTC()

	used, errRun := redisConsumeScript.Run(ctx, l.client, []string{l.windowKey(key, start)}, redisWindowTTL.Milliseconds()).Int64()
	if errRun != nil {
		return Result{}, fmt.Errorf("rate limit redis: consume: %w", errRun)
	}
	if used > int64(limit) {
		return Result{Allowed: false, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(used), Reset: reset}, nil
}

// Close releases the underlying client.
func (l *RedisLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

func (l *RedisLimiter) windowKey(key string, start int64) string {
	parts := make([]string, 0, 3)
	if l.prefix != "" {
		parts = append(parts, l.prefix)
	}
	parts = append(parts, key, strconv.FormatInt(start, 10))
	return strings.Join(parts, ":")
}
