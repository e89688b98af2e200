package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	internalsettings "github.com/router-for-me/CLIProxyAPIKeyManager/internal/settings"
	"gorm.io/gorm"
)

// ddl defines an index or DDL statement to apply.
type ddl struct {
	name string // Human-readable name for error reporting.
	sql  string // SQL to execute.
}

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.ProviderKey{},
		&models.GatewayAPIKey{},
		&models.RetiredGatewayPrefix{},
		&models.AuditLogEntry{},
		&models.GatewayUser{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	for _, item := range indexDDLs(conn) {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return ensureDefaultSettings(conn)
}

// indexDDLs returns the indexes AutoMigrate cannot express, including the
// partial unique index that allows one selected key per user and provider.
func indexDDLs(conn *gorm.DB) []ddl {
	selected := BoolLiteral(conn, true)
	return []ddl{
		{
			name: "idx_provider_keys_one_selected",
			sql: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_provider_keys_one_selected
				ON provider_keys (user_id, provider_name)
				WHERE is_selected = ` + selected,
		},
		{
			name: "idx_provider_keys_fingerprint",
			sql: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_provider_keys_fingerprint
				ON provider_keys (user_id, provider_name, secret_fingerprint)
			`,
		},
		{
			name: "idx_provider_keys_user_created",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_provider_keys_user_created
				ON provider_keys (user_id, created_at)
			`,
		},
		{
			name: "idx_gateway_api_keys_user_created",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_gateway_api_keys_user_created
				ON gateway_api_keys (user_id, created_at)
			`,
		},
		{
			name: "idx_audit_log_entries_user_created",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_audit_log_entries_user_created
				ON audit_log_entries (user_id, created_at DESC, id DESC)
			`,
		},
	}
}

// ensureDefaultSettings seeds runtime settings that are missing or null.
func ensureDefaultSettings(conn *gorm.DB) error {
	defaults := []struct {
		key   string
		value int
	}{
		{internalsettings.RateLimitKey, internalsettings.DefaultRateLimit},
		{internalsettings.ImportMaxRowsKey, internalsettings.DefaultImportMaxRows},
		{internalsettings.FailoverDisableMinutesKey, internalsettings.DefaultFailoverDisableMinutes},
		{internalsettings.AuditListMaxLimitKey, internalsettings.DefaultAuditListMaxLimit},
	}
	for _, item := range defaults {
		if errEnsure := ensureIntSetting(conn, item.key, item.value); errEnsure != nil {
			return errEnsure
		}
	}
	return ensureStringSetting(conn, internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix)
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureSetting(conn, key, payload)
}

// ensureStringSetting ensures a string setting exists and defaults when empty.
func ensureStringSetting(conn *gorm.DB, key string, value string) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	return ensureSetting(conn, key, payload)
}

func ensureSetting(conn *gorm.DB, key string, payload []byte) error {
	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      models.JSONText(payload),
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     models.JSONText(payload),
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
