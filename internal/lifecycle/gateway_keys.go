package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/observability"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/security"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
)

// gatewayKeyAttempts bounds prefix collision retries when issuing a gateway key.
const gatewayKeyAttempts = 3

// CreateGatewayKey issues a new active gateway key. The full secret is only in the returned value.
func (e *Engine) CreateGatewayKey(ctx context.Context, userID, name string) (credential.CreatedGatewayKey, error) {
	name = strings.TrimSpace(name)
	var (
		row  models.GatewayAPIKey
		full string
	)
	backoff := retry.WithMaxRetries(gatewayKeyAttempts-1, retry.NewConstant(10*time.Millisecond))
	errRetry := retry.Do(ctx, backoff, func(ctx context.Context) error {
		material, errGenerate := e.newGatewayKey()
		if errGenerate != nil {
			return credential.StoreUnavailableError(errGenerate, "gateway key generation failed")
		}
		candidate := models.GatewayAPIKey{
			UserID:      userID,
			KeyPrefix:   material.Prefix,
			KeyHash:     material.Hash,
			Fingerprint: material.Fingerprint,
			Name:        name,
			IsActive:    true,
			CreatedAt:   e.now(),
		}
		errCreate := e.store.CreateGatewayKey(ctx, &candidate)
		if credential.IsKind(errCreate, credential.KindConflict) {
			log.WithField("user_id", userID).Debug("gateway key: prefix collision, regenerating")
			return retry.RetryableError(errCreate)
		}
		if errCreate != nil {
			return errCreate
		}
		row = candidate
		full = material.FullKey
		return nil
	})
	if errRetry != nil {
		return credential.CreatedGatewayKey{}, errRetry
	}

	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       credential.ActionAdd,
		ProviderName: credential.ProviderGateway,
		KeyID:        keyRef(row.KeyPrefix),
		Description:  fmt.Sprintf("Created gateway key '%s'", displayName(row.Name, row.KeyPrefix)),
	})
	return credential.CreatedGatewayKey{GatewayKey: gatewayKeyView(row), FullSecret: full}, nil
}

// ListGatewayKeys returns userID's gateway keys newest first, by prefix only.
func (e *Engine) ListGatewayKeys(ctx context.Context, userID string) ([]credential.GatewayKey, error) {
	rows, errList := e.store.ListGatewayKeys(ctx, userID)
	if errList != nil {
		return nil, errList
	}
	out := make([]credential.GatewayKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, gatewayKeyView(row))
	}
	return out, nil
}

// ActivateGatewayKey sets prefix active. Activating an active key succeeds.
func (e *Engine) ActivateGatewayKey(ctx context.Context, userID, prefix string) (credential.GatewayKey, error) {
	return e.setGatewayKeyActive(ctx, userID, prefix, true)
}

// DeactivateGatewayKey sets prefix inactive. Deactivating an inactive key succeeds.
func (e *Engine) DeactivateGatewayKey(ctx context.Context, userID, prefix string) (credential.GatewayKey, error) {
	return e.setGatewayKeyActive(ctx, userID, prefix, false)
}

func (e *Engine) setGatewayKeyActive(ctx context.Context, userID, prefix string, active bool) (credential.GatewayKey, error) {
	if !security.ValidGatewayKeyPrefix(prefix) {
		return credential.GatewayKey{}, credential.ValidationError("invalid gateway key prefix")
	}
	row, errSet := e.store.SetGatewayKeyActive(ctx, userID, prefix, active)
	if errSet != nil {
		return credential.GatewayKey{}, errSet
	}
	action, verb := credential.ActionActivate, "Activated"
	if !active {
		action, verb = credential.ActionDeactivate, "Deactivated"
	}
	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       action,
		ProviderName: credential.ProviderGateway,
		KeyID:        keyRef(row.KeyPrefix),
		Description:  fmt.Sprintf("%s gateway key '%s'", verb, displayName(row.Name, row.KeyPrefix)),
	})
	return gatewayKeyView(row), nil
}

// DeleteGatewayKeyPermanently removes prefix. The prefix is retired and can never be issued again.
func (e *Engine) DeleteGatewayKeyPermanently(ctx context.Context, userID, prefix string) error {
	if !security.ValidGatewayKeyPrefix(prefix) {
		return credential.ValidationError("invalid gateway key prefix")
	}
	row, errDelete := e.store.DeleteGatewayKey(ctx, userID, prefix)
	if errDelete != nil {
		return errDelete
	}
	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       credential.ActionDelete,
		ProviderName: credential.ProviderGateway,
		KeyID:        keyRef(row.KeyPrefix),
		Description:  fmt.Sprintf("Permanently deleted gateway key '%s'", displayName(row.Name, row.KeyPrefix)),
	})
	return nil
}

// AuthenticateGatewayKey resolves a presented full key to its owner.
// Unknown, malformed, mismatched and inactive keys all fail with the same kind.
func (e *Engine) AuthenticateGatewayKey(ctx context.Context, full string) (credential.Principal, error) {
	full = strings.TrimSpace(full)
	rejected := credential.UnauthenticatedError("invalid gateway key")

	prefix, errParse := security.ParseGatewayKey(full)
	if errParse != nil {
		security.EqualizeGatewayKeyTiming(full)
		e.metrics.RecordGatewayAuth("malformed")
		return credential.Principal{}, rejected
	}
	row, errFind := e.store.FindGatewayKeyByFingerprint(ctx, security.GatewayKeyFingerprint(full))
	if errFind != nil {
		if credential.IsKind(errFind, credential.KindNotFound) {
			security.EqualizeGatewayKeyTiming(full)
			e.metrics.RecordGatewayAuth("unknown")
			return credential.Principal{}, rejected
		}
		e.metrics.RecordGatewayAuth(observability.OutcomeError)
		return credential.Principal{}, errFind
	}
	if row.KeyPrefix != prefix || !security.VerifyGatewayKey(row.KeyHash, full) {
		e.metrics.RecordGatewayAuth("mismatch")
		return credential.Principal{}, rejected
	}
	if !row.IsActive {
		e.metrics.RecordGatewayAuth("inactive")
		return credential.Principal{}, credential.UnauthenticatedError("gateway key is inactive")
	}

	if errTouch := e.store.TouchGatewayKey(ctx, row.ID, e.now()); errTouch != nil && !errors.Is(errTouch, context.Canceled) {
		log.WithError(errTouch).WithField("key_prefix", row.KeyPrefix).Warn("gateway key: update last used failed")
	}
	e.metrics.RecordGatewayAuth(observability.OutcomeSuccess)
	return credential.Principal{UserID: row.UserID, KeyPrefix: row.KeyPrefix}, nil
}

func gatewayKeyView(row models.GatewayAPIKey) credential.GatewayKey {
	return credential.GatewayKey{
		KeyPrefix:  row.KeyPrefix,
		UserID:     row.UserID,
		Name:       row.Name,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt,
		LastUsedAt: row.LastUsedAt,
	}
}
