package ratelimit

import (
	"strings"
	"time"

	internalsettings "github.com/router-for-me/CLIProxyAPIKeyManager/internal/settings"
)

// Counter key prefixes.
const (
	userCounterPrefix       = "u"
	gatewayKeyCounterPrefix = "g"
)

// Policy is the mutation limit read from the settings table.
type Policy struct {
	PerSecond int // Mutations per subject per second, 0 disables limiting.
	Redis     RedisSettings
}

// RedisSettings selects the shared counter backend.
type RedisSettings struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Counter is the bucket a request is charged to. A zero Counter is unlimited.
type Counter struct {
	Key   string
	Limit int
}

// Result describes the outcome of charging a counter.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// CurrentPolicy reads the policy from the settings snapshot.
func CurrentPolicy() Policy {
	return Policy{
		PerSecond: internalsettings.IntValue(internalsettings.RateLimitKey, internalsettings.DefaultRateLimit),
		Redis: RedisSettings{
			Enabled:  internalsettings.BoolValue(internalsettings.RateLimitRedisEnabledKey, false),
			Addr:     internalsettings.StringValue(internalsettings.RateLimitRedisAddrKey, ""),
			Password: internalsettings.StringValue(internalsettings.RateLimitRedisPasswordKey, ""),
			DB:       internalsettings.IntValue(internalsettings.RateLimitRedisDBKey, 0),
			Prefix:   internalsettings.StringValue(internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix),
		},
	}
}

// ForUser returns the counter of a dashboard user's key mutations.
func (p Policy) ForUser(userID string) Counter {
	return p.counter(userCounterPrefix, userID)
}

// ForGatewayKey returns the counter of a gateway key, identified by its prefix.
func (p Policy) ForGatewayKey(keyPrefix string) Counter {
	return p.counter(gatewayKeyCounterPrefix, keyPrefix)
}

func (p Policy) counter(kind, subject string) Counter {
	subject = strings.TrimSpace(subject)
	if p.PerSecond <= 0 || subject == "" {
		return Counter{}
	}
	return Counter{Key: kind + ":" + subject, Limit: p.PerSecond}
}
