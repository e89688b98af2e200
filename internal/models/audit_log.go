package models

import "time"

// AuditLogEntry is an append-only record of a credential lifecycle action.
type AuditLogEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID       string  `gorm:"type:varchar(255);not null"` // Owning subject.
	Action       string  `gorm:"type:varchar(32);not null"`  // ADD, DELETE, SELECT, UNSELECT, ...
	ProviderName string  `gorm:"type:varchar(32);not null"`  // Provider or "gateway".
	KeyID        *string `gorm:"type:varchar(64)"`           // Affected key, nil for bulk actions.
	Description  string  `gorm:"type:text"`                  // Server generated summary.

	Details JSONText // Structured context such as import counters.

	CreatedAt time.Time `gorm:"not null"` // Creation timestamp.
}
