// Package lifecycle implements the state transitions of provider and gateway keys.
package lifecycle

import (
	"context"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	internalsettings "github.com/router-for-me/CLIProxyAPIKeyManager/internal/settings"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/store"
	log "github.com/sirupsen/logrus"
)

// SecretSealer encrypts provider secrets at rest and fingerprints them for duplicate checks.
type SecretSealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
	Fingerprint(plaintext string) string
}

// Engine applies lifecycle operations on top of a KeyStore and records each one in the audit log.
type Engine struct {
	store   store.KeyStore
	audit   audit.Log
	sealer  SecretSealer
	metrics *observability.Metrics

	nowFn           func() time.Time
	disableDuration func() time.Duration
	newGatewayKey   func() (security.GatewayKeyMaterial, error)
	newID           func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(nowFn func() time.Time) Option {
	return func(e *Engine) {
		if nowFn != nil {
			e.nowFn = nowFn
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithDisableDuration overrides how long a rate limited provider key is skipped by failover.
func WithDisableDuration(fn func() time.Duration) Option {
	return func(e *Engine) {
		if fn != nil {
			e.disableDuration = fn
		}
	}
}

// WithGatewayKeyGenerator overrides gateway key generation.
func WithGatewayKeyGenerator(fn func() (security.GatewayKeyMaterial, error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newGatewayKey = fn
		}
	}
}

// WithIDGenerator overrides provider key id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(keyStore store.KeyStore, auditLog audit.Log, sealer SecretSealer, opts ...Option) *Engine {
	e := &Engine{
		store:           keyStore,
		audit:           auditLog,
		sealer:          sealer,
		nowFn:           func() time.Time { return time.Now().UTC() },
		disableDuration: settingsDisableDuration,
		newGatewayKey:   security.GenerateGatewayKey,
		newID:           newProviderKeyID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying KeyStore for readiness checks.
func (e *Engine) Store() store.KeyStore {
	if e == nil {
		return nil
	}
	return e.store
}

func settingsDisableDuration() time.Duration {
	minutes := internalsettings.IntValue(internalsettings.FailoverDisableMinutesKey, internalsettings.DefaultFailoverDisableMinutes)
	return time.Duration(minutes) * time.Minute
}

func (e *Engine) now() time.Time {
	return e.nowFn().UTC()
}

// record appends an audit entry. Failures are logged and counted but never returned.
func (e *Engine) record(ctx context.Context, entry audit.Entry) {
	if e.audit == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.now()
	}
	if errAppend := e.audit.Append(ctx, entry); errAppend != nil {
		e.metrics.RecordAuditWriteFailure()
		fields := log.Fields{
			"user_id":  entry.UserID,
			"action":   entry.Action,
			"provider": entry.ProviderName,
		}
		if entry.KeyID != nil {
			fields["key_id"] = *entry.KeyID
		}
		log.WithError(errAppend).WithFields(fields).Error("audit: append failed")
	}
}

func keyRef(id string) *string {
	return &id
}

// displayName is the label used in audit descriptions: the key name, or its id when unnamed.
func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
