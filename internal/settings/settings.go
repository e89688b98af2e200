package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// snapshot holds the latest settings table contents.
var snapshot atomic.Pointer[map[string]json.RawMessage]

// DBConfigValue returns the raw JSON value stored for key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	current := snapshot.Load()
	if current == nil {
		return nil, false
	}
	value, ok := (*current)[strings.TrimSpace(key)]
	if !ok || len(bytes.TrimSpace(value)) == 0 {
		return nil, false
	}
	return value, true
}

// StoreDBConfig replaces the settings snapshot.
func StoreDBConfig(values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		next[strings.TrimSpace(key)] = value
	}
	snapshot.Store(&next)
}

// Reload reads every row of the settings table into the snapshot.
func Reload(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("settings: nil connection")
	}
	var rows []models.Setting
	if errFind := conn.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}
	values := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		values[row.Key] = json.RawMessage(row.Value)
	}
	StoreDBConfig(values)
	return nil
}

// RunRefresher reloads settings every interval until ctx is done.
func RunRefresher(ctx context.Context, conn *gorm.DB, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if errReload := Reload(ctx, conn); errReload != nil {
				log.WithError(errReload).Warn("settings: refresh failed")
			}
		}
	}
}

// IntValue returns a non-negative integer setting or fallback.
func IntValue(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	if parsed, okParse := ParseNonNegativeInt(raw); okParse {
		return parsed
	}
	return fallback
}

// ParseNonNegativeInt accepts JSON numbers and numeric strings.
func ParseNonNegativeInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var parsedInt int
	if errUnmarshalInt := json.Unmarshal(raw, &parsedInt); errUnmarshalInt == nil {
		return parsedInt, parsedInt >= 0
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(parsedString))
		if errParse != nil {
			return 0, false
		}
		return parsed, parsed >= 0
	}
	return 0, false
}

// BoolValue returns a boolean setting or fallback. Numeric 0/1 and
// strings such as "on" or "off" are accepted.
func BoolValue(key string, fallback bool) bool {
	raw, ok := DBConfigValue(key)
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return fallback
	}
	var parsedBool bool
	if errUnmarshal := json.Unmarshal(raw, &parsedBool); errUnmarshal == nil {
		return parsedBool
	}
	var text string
	if errUnmarshal := json.Unmarshal(raw, &text); errUnmarshal != nil {
		text = string(raw)
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// StringValue returns a trimmed string setting, or fallback when it is unset or blank.
func StringValue(key string, fallback string) string {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	var text string
	if errUnmarshal := json.Unmarshal(raw, &text); errUnmarshal != nil {
		return fallback
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback
	}
	return text
}
