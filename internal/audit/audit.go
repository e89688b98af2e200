// Package audit persists the append-only record of credential lifecycle actions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/credential"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	internalsettings "github.com/router-for-me/CLIProxyAPIKeyManager/internal/settings"
	"gorm.io/gorm"
)

// DefaultListLimit applies when a caller asks for zero or a negative number of entries.
const DefaultListLimit = 50

// Entry is one lifecycle action to record.
type Entry struct {
	UserID       string
	Action       string
	ProviderName string
	KeyID        *string
	Description  string
	Details      map[string]any
	CreatedAt    time.Time
}

// Log appends and lists audit entries.
type Log interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, userID string, limit int) ([]credential.AuditEntry, error)
}

// GormLog stores audit entries in the audit_log_entries table.
type GormLog struct {
	db       *gorm.DB
	maxLimit func() int
}

// NewGormLog constructs a GormLog whose list cap follows the AUDIT_LIST_MAX_LIMIT setting.
func NewGormLog(conn *gorm.DB) *GormLog {
	return &GormLog{
		db: conn,
		maxLimit: func() int {
			return internalsettings.IntValue(internalsettings.AuditListMaxLimitKey, internalsettings.DefaultAuditListMaxLimit)
		},
	}
}

var _ Log = (*GormLog)(nil)

// Append inserts entry. Entries are never updated or deleted.
func (l *GormLog) Append(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("gorm audit log: not initialized")
	}
	if strings.TrimSpace(entry.UserID) == "" || strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("gorm audit log: user and action are required")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := models.AuditLogEntry{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ProviderName: entry.ProviderName,
		KeyID:        entry.KeyID,
		Description:  entry.Description,
		CreatedAt:    createdAt.UTC(),
	}
	if len(entry.Details) > 0 {
		payload, errMarshal := json.Marshal(entry.Details)
		if errMarshal != nil {
			return fmt.Errorf("gorm audit log: marshal details: %w", errMarshal)
		}
		row.Details = models.JSONText(payload)
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("gorm audit log: append: %w", errCreate)
	}
	return nil
}

// List returns up to limit entries of userID, newest first.
func (l *GormLog) List(ctx context.Context, userID string, limit int) ([]credential.AuditEntry, error) {
	if l == nil || l.db == nil {
		return nil, credential.StoreUnavailableError(fmt.Errorf("gorm audit log: not initialized"), "audit log unavailable")
	}
	limit = l.clampLimit(limit)

	var rows []models.AuditLogEntry
	errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if errFind != nil {
		return nil, credential.StoreUnavailableError(errFind, "audit log unavailable")
	}

	out := make([]credential.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out, nil
}

func (l *GormLog) clampLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	maxLimit := DefaultListLimit
	if l.maxLimit != nil {
		if configured := l.maxLimit(); configured > 0 {
			maxLimit = configured
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func toView(row models.AuditLogEntry) credential.AuditEntry {
	view := credential.AuditEntry{
		ID:           row.ID,
		UserID:       row.UserID,
		Action:       row.Action,
		ProviderName: row.ProviderName,
		KeyID:        row.KeyID,
		Description:  row.Description,
		CreatedAt:    row.CreatedAt,
	}
	if len(row.Details) > 0 {
		var details map[string]any
		if errUnmarshal := json.Unmarshal(row.Details, &details); errUnmarshal == nil {
			view.Details = details
		}
	}
	return view
}
