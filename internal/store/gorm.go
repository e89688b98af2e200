package store

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/db"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	whatProviderKey = "provider key"
	whatGatewayKey  = "gateway key"
	whatGatewayUser = "gateway user"
)

// GormKeyStore implements KeyStore on PostgreSQL or SQLite via GORM.
type GormKeyStore struct {
	db *gorm.DB
}

// NewGormKeyStore constructs a GormKeyStore.
func NewGormKeyStore(conn *gorm.DB) *GormKeyStore {
	return &GormKeyStore{db: conn}
}

var _ KeyStore = (*GormKeyStore)(nil)

// Ping checks that the database answers.
func (s *GormKeyStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	if errPing := db.Ping(ctx, s.db); errPing != nil {
		return credential.StoreUnavailableError(errPing, "key store unreachable")
	}
	return nil
}

// CreateProviderKey inserts row. Duplicate fingerprints map to Conflict.
func (s *GormKeyStore) CreateProviderKey(ctx context.Context, row *models.ProviderKey) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	if row == nil {
		return credential.ValidationError("provider key is required")
	}
	if errCreate := s.db.WithContext(ctx).Create(row).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return credential.ConflictError(errCreate, "provider key already exists for %s", row.ProviderName)
		}
		return translate(errCreate, whatProviderKey)
	}
	return nil
}

// GetProviderKey loads one key owned by userID.
func (s *GormKeyStore) GetProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return models.ProviderKey{}, unavailable()
	}
	var row models.ProviderKey
	errFind := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", strings.TrimSpace(id), userID).
		First(&row).Error
	if errFind != nil {
		return models.ProviderKey{}, translate(errFind, whatProviderKey)
	}
	return row, nil
}

// ListProviderKeys returns userID's keys newest first. An empty provider lists every provider.
func (s *GormKeyStore) ListProviderKeys(ctx context.Context, userID, provider string) ([]models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return nil, unavailable()
	}
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if provider != "" {
		query = query.Where("provider_name = ?", provider)
	}
	var rows []models.ProviderKey
	if errFind := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, translate(errFind, whatProviderKey)
	}
	return rows, nil
}

// ListProviderKeysForRotation returns userID's keys for provider oldest first.
func (s *GormKeyStore) ListProviderKeysForRotation(ctx context.Context, userID, provider string) ([]models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return nil, unavailable()
	}
	var rows []models.ProviderKey
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_name = ?", userID, provider).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, translate(errFind, whatProviderKey)
	}
	return rows, nil
}

// SelectProviderKey makes id the only selected key of its (user, provider) in one transaction.
func (s *GormKeyStore) SelectProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return models.ProviderKey{}, unavailable()
	}
	var row models.ProviderKey
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; errFind != nil {
			return errFind
		}
		errClear := tx.Model(&models.ProviderKey{}).
			Where("user_id = ? AND provider_name = ? AND id <> ? AND is_selected = ?", userID, row.ProviderName, id, true).
			Update("is_selected", false).Error
		if errClear != nil {
			return errClear
		}
		res := tx.Model(&models.ProviderKey{}).
			Where("id = ? AND user_id = ?", id, userID).
			Update("is_selected", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		row.IsSelected = true
		return nil
	})
	if errTx != nil {
		return models.ProviderKey{}, translate(errTx, whatProviderKey)
	}
	return row, nil
}

// UnselectProviderKey clears the selected flag of id.
func (s *GormKeyStore) UnselectProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return models.ProviderKey{}, unavailable()
	}
	var row models.ProviderKey
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; errFind != nil {
			return errFind
		}
		if errUpdate := tx.Model(&row).Update("is_selected", false).Error; errUpdate != nil {
			return errUpdate
		}
		row.IsSelected = false
		return nil
	})
	if errTx != nil {
		return models.ProviderKey{}, translate(errTx, whatProviderKey)
	}
	return row, nil
}

// SwapSelection moves the selection of (userID, provider) from fromID to toID in one transaction.
// A missing fromID means the selection changed concurrently and is reported as Conflict.
func (s *GormKeyStore) SwapSelection(ctx context.Context, userID, provider, fromID, toID string) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		errCount := tx.Model(&models.ProviderKey{}).
			Where("id = ? AND user_id = ? AND provider_name = ?", fromID, userID, provider).
			Count(&count).Error
		if errCount != nil {
			return errCount
		}
		if count == 0 {
			return credential.ConflictError(nil, "provider key selection changed concurrently")
		}
		errClear := tx.Model(&models.ProviderKey{}).
			Where("user_id = ? AND provider_name = ? AND is_selected = ?", userID, provider, true).
			Update("is_selected", false).Error
		if errClear != nil {
			return errClear
		}
		res := tx.Model(&models.ProviderKey{}).
			Where("id = ? AND user_id = ? AND provider_name = ?", toID, userID, provider).
			Update("is_selected", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(errTx, whatProviderKey)
}

// DisableProviderKeyUntil marks id as skipped by failover until the given time.
func (s *GormKeyStore) DisableProviderKeyUntil(ctx context.Context, userID, id string, until time.Time) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	until = until.UTC()
	res := s.db.WithContext(ctx).Model(&models.ProviderKey{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("disabled_until", &until)
	if res.Error != nil {
		return translate(res.Error, whatProviderKey)
	}
	if res.RowsAffected == 0 {
		return credential.NotFoundError("provider key not found")
	}
	return nil
}

// DeleteProviderKey removes id and returns the deleted row.
func (s *GormKeyStore) DeleteProviderKey(ctx context.Context, userID, id string) (models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return models.ProviderKey{}, unavailable()
	}
	var row models.ProviderKey
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id = ?", id, userID).First(&row).Error; errFind != nil {
			return errFind
		}
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.ProviderKey{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errTx != nil {
		return models.ProviderKey{}, translate(errTx, whatProviderKey)
	}
	return row, nil
}

// DeleteProviderKeys removes every key of (userID, provider) in a single statement.
func (s *GormKeyStore) DeleteProviderKeys(ctx context.Context, userID, provider string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, unavailable()
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_name = ?", userID, provider).
		Delete(&models.ProviderKey{})
	if res.Error != nil {
		return 0, translate(res.Error, whatProviderKey)
	}
	return res.RowsAffected, nil
}

// ListSelectedProviderKeys returns the selected key of every (user, provider).
func (s *GormKeyStore) ListSelectedProviderKeys(ctx context.Context) ([]models.ProviderKey, error) {
	if s == nil || s.db == nil {
		return nil, unavailable()
	}
	var rows []models.ProviderKey
	errFind := s.db.WithContext(ctx).
		Where("is_selected = ?", true).
		Order("user_id ASC").Order("provider_name ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, translate(errFind, whatProviderKey)
	}
	return rows, nil
}

// CreateGatewayKey inserts row unless its prefix is live or retired.
func (s *GormKeyStore) CreateGatewayKey(ctx context.Context, row *models.GatewayAPIKey) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	if row == nil {
		return credential.ValidationError("gateway key is required")
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var retired int64
		errCount := tx.Model(&models.RetiredGatewayPrefix{}).
			Where("key_prefix = ?", row.KeyPrefix).
			Count(&retired).Error
		if errCount != nil {
			return errCount
		}
		if retired > 0 {
			return credential.ConflictError(nil, "gateway key prefix already used")
		}
		return tx.Create(row).Error
	})
	return translate(errTx, whatGatewayKey)
}

// GetGatewayKey loads one gateway key owned by userID.
func (s *GormKeyStore) GetGatewayKey(ctx context.Context, userID, prefix string) (models.GatewayAPIKey, error) {
	if s == nil || s.db == nil {
		return models.GatewayAPIKey{}, unavailable()
	}
	var row models.GatewayAPIKey
	errFind := s.db.WithContext(ctx).
		Where("key_prefix = ? AND user_id = ?", prefix, userID).
		First(&row).Error
	if errFind != nil {
		return models.GatewayAPIKey{}, translate(errFind, whatGatewayKey)
	}
	return row, nil
}

// ListGatewayKeys returns userID's gateway keys newest first.
func (s *GormKeyStore) ListGatewayKeys(ctx context.Context, userID string) ([]models.GatewayAPIKey, error) {
	if s == nil || s.db == nil {
		return nil, unavailable()
	}
	var rows []models.GatewayAPIKey
	errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if errFind != nil {
		return nil, translate(errFind, whatGatewayKey)
	}
	return rows, nil
}

// SetGatewayKeyActive sets is_active on prefix. A key already in the requested state is left as is.
func (s *GormKeyStore) SetGatewayKeyActive(ctx context.Context, userID, prefix string, active bool) (models.GatewayAPIKey, error) {
	if s == nil || s.db == nil {
		return models.GatewayAPIKey{}, unavailable()
	}
	var row models.GatewayAPIKey
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("key_prefix = ? AND user_id = ?", prefix, userID).First(&row).Error; errFind != nil {
			return errFind
		}
		if row.IsActive == active {
			return nil
		}
		if errUpdate := tx.Model(&row).Update("is_active", active).Error; errUpdate != nil {
			return errUpdate
		}
		row.IsActive = active
		return nil
	})
	if errTx != nil {
		return models.GatewayAPIKey{}, translate(errTx, whatGatewayKey)
	}
	return row, nil
}

// DeleteGatewayKey removes prefix and retires it in one transaction.
func (s *GormKeyStore) DeleteGatewayKey(ctx context.Context, userID, prefix string) (models.GatewayAPIKey, error) {
	if s == nil || s.db == nil {
		return models.GatewayAPIKey{}, unavailable()
	}
	var row models.GatewayAPIKey
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("key_prefix = ? AND user_id = ?", prefix, userID).First(&row).Error; errFind != nil {
			return errFind
		}
		if errDelete := tx.Delete(&models.GatewayAPIKey{}, row.ID).Error; errDelete != nil {
			return errDelete
		}
		retired := models.RetiredGatewayPrefix{KeyPrefix: row.KeyPrefix, RetiredAt: time.Now().UTC()}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&retired).Error
	})
	if errTx != nil {
		return models.GatewayAPIKey{}, translate(errTx, whatGatewayKey)
	}
	return row, nil
}

// FindGatewayKeyByFingerprint looks a gateway key up by the SHA-256 of its full secret.
func (s *GormKeyStore) FindGatewayKeyByFingerprint(ctx context.Context, fingerprint string) (models.GatewayAPIKey, error) {
	if s == nil || s.db == nil {
		return models.GatewayAPIKey{}, unavailable()
	}
	var row models.GatewayAPIKey
	if errFind := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&row).Error; errFind != nil {
		return models.GatewayAPIKey{}, translate(errFind, whatGatewayKey)
	}
	return row, nil
}

// TouchGatewayKey records a successful authentication.
func (s *GormKeyStore) TouchGatewayKey(ctx context.Context, id uint64, at time.Time) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	at = at.UTC()
	errUpdate := s.db.WithContext(ctx).Model(&models.GatewayAPIKey{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", &at).Error
	return translate(errUpdate, whatGatewayKey)
}

// UpsertGatewayUser creates or refreshes a dashboard user record.
func (s *GormKeyStore) UpsertGatewayUser(ctx context.Context, user models.GatewayUser) error {
	if s == nil || s.db == nil {
		return unavailable()
	}
	if strings.TrimSpace(user.Subject) == "" {
		return credential.ValidationError("user subject is required")
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.LastLoginAt.IsZero() {
		user.LastLoginAt = now
	}
	// A token without an email claim keeps the stored one.
	refresh := []string{"updated_at", "last_login_at"}
	if strings.TrimSpace(user.Email) != "" {
		refresh = append(refresh, "email")
	}
	errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}},
		DoUpdates: clause.AssignmentColumns(refresh),
	}).Create(&user).Error
	return translate(errUpsert, whatGatewayUser)
}
