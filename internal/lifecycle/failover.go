package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	log "github.com/sirupsen/logrus"
)

// FailoverRequest reports an upstream failure of a selected provider key.
type FailoverRequest struct {
	UserID       string
	Provider     string // Canonical provider name.
	FailedKeyID  string
	ErrorCode    int
	ErrorMessage string
}

// Failover rotates the selection of (user, provider) away from a failing key.
// A 429 also disables the failing key for the configured window. It returns the newly selected key,
// or nil when no other key is available.
func (e *Engine) Failover(ctx context.Context, req FailoverRequest) (*credential.ProviderKey, error) {
	provider := credential.NormalizeProvider(req.Provider)
	if provider == "" {
		return nil, credential.ValidationError("unknown provider %q", req.Provider)
	}
	now := e.now()
	logger := log.WithFields(log.Fields{
		"user_id":    req.UserID,
		"provider":   provider,
		"key_id":     req.FailedKeyID,
		"error_code": req.ErrorCode,
	})
	logger.Warn("failover: triggered")

	failed, errGet := e.store.GetProviderKey(ctx, req.UserID, req.FailedKeyID)
	if errGet != nil {
		return nil, errGet
	}
	if failed.ProviderName != provider {
		return nil, credential.NotFoundError("provider key not found")
	}
	failedName := displayName(failed.Name, failed.ID)

	if req.ErrorCode == http.StatusTooManyRequests {
		until := now.Add(e.disableDuration())
		if errDisable := e.store.DisableProviderKeyUntil(ctx, req.UserID, failed.ID, until); errDisable != nil {
			logger.WithError(errDisable).Error("failover: disable failed key")
		} else {
			failed.DisabledUntil = &until
		}
	}

	candidates, errList := e.store.ListProviderKeysForRotation(ctx, req.UserID, provider)
	if errList != nil {
		return nil, errList
	}
	next, found := nextAvailable(candidates, failed.ID, now)
	if !found {
		e.record(ctx, audit.Entry{
			UserID:       req.UserID,
			Action:       credential.ActionFailoverExhausted,
			ProviderName: provider,
			KeyID:        keyRef(failed.ID),
			Description:  fmt.Sprintf("No available keys to switch to after error %d on key '%s'", req.ErrorCode, failedName),
		})
		e.metrics.RecordFailover(provider, "exhausted")
		logger.Warn("failover: no alternative key available")
		return nil, nil
	}

	if _, errOpen := e.sealer.Decrypt(next.SecretEncrypted); errOpen != nil {
		e.record(ctx, audit.Entry{
			UserID:       req.UserID,
			Action:       credential.ActionError,
			ProviderName: provider,
			KeyID:        keyRef(next.ID),
			Description:  "Failed to decrypt key during failover. Manual intervention needed.",
		})
		e.metrics.RecordFailover(provider, "error")
		logDecryptFailure(next, errOpen)
		return nil, nil
	}

	if errSwap := e.store.SwapSelection(ctx, req.UserID, provider, failed.ID, next.ID); errSwap != nil {
		e.record(ctx, audit.Entry{
			UserID:       req.UserID,
			Action:       credential.ActionError,
			ProviderName: provider,
			KeyID:        keyRef(next.ID),
			Description:  "Selection update failed during failover to this key.",
		})
		e.metrics.RecordFailover(provider, "error")
		return nil, errSwap
	}

	detail := ""
	if req.ErrorMessage != "" {
		detail = ": " + req.ErrorMessage
	}
	nextName := displayName(next.Name, next.ID)
	e.record(ctx, audit.Entry{
		UserID:       req.UserID,
		Action:       credential.ActionUnselect,
		ProviderName: provider,
		KeyID:        keyRef(failed.ID),
		Description:  fmt.Sprintf("Key '%s' unselected due to error %d%s", failedName, req.ErrorCode, detail),
	})
	e.record(ctx, audit.Entry{
		UserID:       req.UserID,
		Action:       credential.ActionSelect,
		ProviderName: provider,
		KeyID:        keyRef(next.ID),
		Description:  fmt.Sprintf("Selected key '%s' by automatic failover from key '%s'", nextName, failedName),
	})
	e.metrics.RecordFailover(provider, "rotated")
	logger.WithField("next_key_id", next.ID).Info("failover: switched selected key")

	next.IsSelected = true
	view := providerKeyView(next)
	return &view, nil
}

// nextAvailable walks candidates (oldest first) starting after failedID and wraps around.
// A key is available when it is not the failed key and is not disabled at now.
func nextAvailable(candidates []models.ProviderKey, failedID string, now time.Time) (models.ProviderKey, bool) {
	start := -1
	for i, candidate := range candidates {
		if candidate.ID == failedID {
			start = i
			break
		}
	}
	if start < 0 {
		return models.ProviderKey{}, false
	}
	for step := 1; step < len(candidates); step++ {
		candidate := candidates[(start+step)%len(candidates)]
		if candidate.DisabledUntil != nil && candidate.DisabledUntil.After(now) {
			continue
		}
		return candidate, true
	}
	return models.ProviderKey{}, false
}

func logDecryptFailure(row models.ProviderKey, err error) {
	log.WithError(err).WithFields(log.Fields{
		"user_id":  row.UserID,
		"provider": row.ProviderName,
		"key_id":   row.ID,
	}).Error("provider key: decrypt failed")
}
