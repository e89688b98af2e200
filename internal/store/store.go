package store

import (
	"context"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
)

// KeyStore persists provider keys, gateway keys and gateway users.
// Every user-facing query is scoped by user id, so another user's record reads as not found.
type KeyStore interface {
	Ping(ctx context.Context) error

	CreateProviderKey(ctx context.Context, row *models.ProviderKey) error
	GetProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error)
	ListProviderKeys(ctx context.Context, userID, provider string) ([]models.ProviderKey, error)
	ListProviderKeysForRotation(ctx context.Context, userID, provider string) ([]models.ProviderKey, error)
	SelectProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error)
	UnselectProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error)
	SwapSelection(ctx context.Context, userID, provider, fromID, toID string) error
	DisableProviderKeyUntil(ctx context.Context, userID, id string, until time.Time) error
	DeleteProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error)
	DeleteProviderKeys(ctx context.Context, userID, provider string) (int64, error)
	ListSelectedProviderKeys(ctx context.Context) ([]models.ProviderKey, error)

	CreateGatewayKey(ctx context.Context, row *models.GatewayAPIKey) error
	GetGatewayKey(ctx context.Context, userID, prefix string) (models.GatewayAPIKey, error)
	ListGatewayKeys(ctx context.Context, userID string) ([]models.GatewayAPIKey, error)
	SetGatewayKeyActive(ctx context.Context, userID, prefix string, active bool) (models.GatewayAPIKey, error)
	DeleteGatewayKey(ctx context.Context, userID, prefix string) (models.GatewayAPIKey, error)
	FindGatewayKeyByFingerprint(ctx context.Context, fingerprint string) (models.GatewayAPIKey, error)
	TouchGatewayKey(ctx context.Context, id uint64, at time.Time) error

	UpsertGatewayUser(ctx context.Context, user models.GatewayUser) error
}
