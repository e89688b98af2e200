package settings

// DB config keys and defaults for settings.
const (
	// RateLimitKey controls the mutation rate limit per user per second.
	RateLimitKey = "RATE_LIMIT"
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// ImportMaxRowsKey bounds the number of non-blank lines in one CSV import.
	ImportMaxRowsKey = "IMPORT_MAX_ROWS"
	// FailoverDisableMinutesKey controls how long a rate limited provider key is skipped.
	FailoverDisableMinutesKey = "FAILOVER_DISABLE_MINUTES"
	// AuditListMaxLimitKey caps the limit accepted by the activity log listing.
	AuditListMaxLimitKey = "AUDIT_LIST_MAX_LIMIT"

	// DefaultRateLimit is the fallback rate limit (0 means unlimited).
	DefaultRateLimit = 0
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "keymanager:rl"
	// DefaultImportMaxRows is the fallback CSV import row bound.
	DefaultImportMaxRows = 1000
	// DefaultFailoverDisableMinutes is the fallback disable window after a 429.
	DefaultFailoverDisableMinutes = 5
	// DefaultAuditListMaxLimit is the fallback cap for activity log listing.
	DefaultAuditListMaxLimit = 200
)
