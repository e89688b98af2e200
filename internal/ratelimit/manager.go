package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisBreakerDuration is how long Redis is skipped after a failure.
const redisBreakerDuration = 30 * time.Second

// redisPingTimeout bounds the connectivity check of a new Redis client.
const redisPingTimeout = 2 * time.Second

// PolicySource supplies the current policy.
type PolicySource func() Policy

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// FallbackHook is invoked whenever a check falls back from Redis to memory.
type FallbackHook func(err error)

type redisTarget struct {
	addr     string
	password string
	prefix   string
	db       int
}

func targetOf(settings RedisSettings) redisTarget {
	return redisTarget{
		addr:     settings.Addr,
		password: settings.Password,
		prefix:   settings.Prefix,
		db:       settings.DB,
	}
}

// Manager enforces rate limit decisions on Redis when enabled and healthy, in memory otherwise.
type Manager struct {
	policy     PolicySource
	nowFn      func() time.Time
	memory     *MemoryLimiter
	newClient  RedisClientFactory
	onFallback FallbackHook

	mu           sync.Mutex
	redis        *RedisLimiter
	target       redisTarget
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(policy PolicySource, nowFn func() time.Time, newClient RedisClientFactory) *Manager {
	if policy == nil {
		policy = CurrentPolicy
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	return &Manager{
		policy:    policy,
		nowFn:     nowFn,
		memory:    NewMemoryLimiter(),
		newClient: newClient,
	}
}

// SetFallbackHook registers fn to observe Redis fallbacks.
func (m *Manager) SetFallbackHook(fn FallbackHook) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.onFallback = fn
	m.mu.Unlock()
}

// Policy returns the current policy.
func (m *Manager) Policy() Policy {
	if m == nil || m.policy == nil {
		return Policy{}
	}
	return m.policy()
}

// Charge consumes one request from counter. A zero Counter is always allowed.
func (m *Manager) Charge(ctx context.Context, counter Counter) (Result, error) {
	return m.Allow(ctx, counter.Key, counter.Limit)
}

// Allow checks whether one more request for key fits within limit per second.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	redisSettings := m.policy().Redis
	if redisSettings.Enabled {
		result, errRedis := m.allowRedis(ctx, key, limit, now, targetOf(redisSettings))
		if errRedis == nil {
			return result, nil
		}
		m.fallback(errRedis)
	}
	return m.memory.Allow(ctx, key, limit, now)
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		return nil
	}
	errClose := m.redis.Close()
	m.redis = nil
	return errClose
}

var errBreakerOpen = errors.New("rate limit redis: breaker open")

func (m *Manager) allowRedis(ctx context.Context, key string, limit int, now time.Time, target redisTarget) (Result, error) {
	if m.breakerOpen(now) {
		return Result{}, errBreakerOpen
	}
	limiter, errConnect := m.connect(ctx, target)
	if errConnect != nil {
		m.trip(errConnect, now)
		return Result{}, errConnect
	}
	result, errAllow := limiter.Allow(ctx, key, limit, now)
	if errAllow != nil {
		m.trip(errAllow, now)
		return Result{}, errAllow
	}
	return result, nil
}

func (m *Manager) fallback(err error) {
	m.mu.Lock()
	hook := m.onFallback
	m.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

func (m *Manager) breakerOpen(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) trip(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

func (m *Manager) connect(ctx context.Context, target redisTarget) (*RedisLimiter, error) {
	if target.addr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redis != nil && m.target == target {
		return m.redis, nil
	}
	if m.redis != nil {
		_ = m.redis.Close()
		m.redis = nil
	}

	client := m.newClient(&redis.Options{
		Addr:     target.addr,
		Password: target.password,
		DB:       target.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redis = NewRedisLimiter(client, target.prefix)
	m.target = target
	return m.redis, nil
}
