package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/audit"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
)

// Source tells AddProviderKey where a key comes from.
type Source int

const (
	// SourceManual is a single key added by the user. It writes its own ADD entry.
	SourceManual Source = iota
	// SourceImport is a row of a CSV batch. The batch writes one summary entry instead.
	SourceImport
)

// AddProviderKeyRequest describes a provider key to store.
type AddProviderKeyRequest struct {
	UserID   string
	Provider string // Canonical provider name.
	Secret   string
	Name     string
	Source   Source
}

func newProviderKeyID() string {
	return uuid.NewString()
}

// AddProviderKey encrypts and stores a new, unselected provider key.
func (e *Engine) AddProviderKey(ctx context.Context, req AddProviderKeyRequest) (credential.ProviderKey, error) {
	secret := strings.TrimSpace(req.Secret)
	if secret == "" {
		return credential.ProviderKey{}, credential.ValidationError("secret is required")
	}
	provider := credential.NormalizeProvider(req.Provider)
	if provider == "" {
		return credential.ProviderKey{}, credential.ValidationError("unknown provider %q", req.Provider)
	}
	if e.sealer == nil {
		return credential.ProviderKey{}, credential.StoreUnavailableError(nil, "secret encryption unavailable")
	}
	sealed, errSeal := e.sealer.Encrypt(secret)
	if errSeal != nil {
		return credential.ProviderKey{}, credential.StoreUnavailableError(errSeal, "secret encryption failed")
	}

	row := models.ProviderKey{
		ID:                e.newID(),
		UserID:            req.UserID,
		ProviderName:      provider,
		Name:              strings.TrimSpace(req.Name),
		SecretEncrypted:   sealed,
		SecretFingerprint: e.sealer.Fingerprint(secret),
		IsSelected:        false,
		CreatedAt:         e.now(),
	}
	if errCreate := e.store.CreateProviderKey(ctx, &row); errCreate != nil {
		return credential.ProviderKey{}, errCreate
	}

	if req.Source != SourceImport {
		e.record(ctx, audit.Entry{
			UserID:       row.UserID,
			Action:       credential.ActionAdd,
			ProviderName: provider,
			KeyID:        keyRef(row.ID),
			Description:  fmt.Sprintf("Added %s key '%s'", provider, displayName(row.Name, row.ID)),
		})
	}
	return providerKeyView(row), nil
}

// GetProviderKey returns one key of userID without its secret.
func (e *Engine) GetProviderKey(ctx context.Context, userID, id string) (credential.ProviderKey, error) {
	row, errGet := e.store.GetProviderKey(ctx, userID, id)
	if errGet != nil {
		return credential.ProviderKey{}, errGet
	}
	return providerKeyView(row), nil
}

// ListProviderKeys returns userID's keys newest first. An empty provider lists all providers.
func (e *Engine) ListProviderKeys(ctx context.Context, userID, provider string) ([]credential.ProviderKey, error) {
	rows, errList := e.store.ListProviderKeys(ctx, userID, provider)
	if errList != nil {
		return nil, errList
	}
	out := make([]credential.ProviderKey, 0, len(rows))
	for _, row := range rows {
		out = append(out, providerKeyView(row))
	}
	return out, nil
}

// SelectProviderKey makes id the selected key of its provider. Selecting a selected key is a no-op
// that still writes a SELECT entry.
func (e *Engine) SelectProviderKey(ctx context.Context, userID, id string) (credential.ProviderKey, error) {
	row, errSelect := e.store.SelectProviderKey(ctx, userID, id)
	if errSelect != nil {
		return credential.ProviderKey{}, errSelect
	}
	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       credential.ActionSelect,
		ProviderName: row.ProviderName,
		KeyID:        keyRef(row.ID),
		Description:  fmt.Sprintf("Selected %s key '%s'", row.ProviderName, displayName(row.Name, row.ID)),
	})
	return providerKeyView(row), nil
}

// UnselectProviderKey clears the selected flag of id.
func (e *Engine) UnselectProviderKey(ctx context.Context, userID, id string) (credential.ProviderKey, error) {
	row, errUnselect := e.store.UnselectProviderKey(ctx, userID, id)
	if errUnselect != nil {
		return credential.ProviderKey{}, errUnselect
	}
	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       credential.ActionUnselect,
		ProviderName: row.ProviderName,
		KeyID:        keyRef(row.ID),
		Description:  fmt.Sprintf("Unselected %s key '%s'", row.ProviderName, displayName(row.Name, row.ID)),
	})
	return providerKeyView(row), nil
}

// DeleteProviderKey removes id.
func (e *Engine) DeleteProviderKey(ctx context.Context, userID, id string) error {
	row, errDelete := e.store.DeleteProviderKey(ctx, userID, id)
	if errDelete != nil {
		return errDelete
	}
	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       credential.ActionDelete,
		ProviderName: row.ProviderName,
		KeyID:        keyRef(row.ID),
		Description:  fmt.Sprintf("Deleted %s key '%s'", row.ProviderName, displayName(row.Name, row.ID)),
	})
	return nil
}

// DeleteAllProviderKeys removes every key of (userID, provider) and returns how many were removed.
func (e *Engine) DeleteAllProviderKeys(ctx context.Context, userID, provider string) (int, error) {
	canonical := credential.NormalizeProvider(provider)
	if canonical == "" {
		return 0, credential.ValidationError("unknown provider %q", provider)
	}
	deleted, errDelete := e.store.DeleteProviderKeys(ctx, userID, canonical)
	if errDelete != nil {
		return 0, errDelete
	}
	e.record(ctx, audit.Entry{
		UserID:       userID,
		Action:       credential.ActionDelete,
		ProviderName: canonical,
		Description:  fmt.Sprintf("All %d %s keys deleted", deleted, canonical),
		Details:      map[string]any{"deleted": deleted},
	})
	return int(deleted), nil
}

// SelectedSecrets decrypts the selected key of every (user, provider).
// Keys that cannot be decrypted are skipped and logged.
func (e *Engine) SelectedSecrets(ctx context.Context) ([]credential.ResolvedKey, error) {
	rows, errList := e.store.ListSelectedProviderKeys(ctx)
	if errList != nil {
		return nil, errList
	}
	out := make([]credential.ResolvedKey, 0, len(rows))
	for _, row := range rows {
		secret, errOpen := e.sealer.Decrypt(row.SecretEncrypted)
		if errOpen != nil {
			logDecryptFailure(row, errOpen)
			continue
		}
		out = append(out, credential.ResolvedKey{
			ID:           row.ID,
			UserID:       row.UserID,
			ProviderName: row.ProviderName,
			Name:         row.Name,
			Secret:       secret,
		})
	}
	return out, nil
}

func providerKeyView(row models.ProviderKey) credential.ProviderKey {
	return credential.ProviderKey{
		ID:            row.ID,
		UserID:        row.UserID,
		ProviderName:  row.ProviderName,
		Name:          row.Name,
		IsSelected:    row.IsSelected,
		DisabledUntil: row.DisabledUntil,
		CreatedAt:     row.CreatedAt,
	}
}
