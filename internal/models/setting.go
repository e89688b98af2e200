package models

import "time"

// Setting stores a runtime configuration value as JSON.
type Setting struct {
	Key       string    `gorm:"type:varchar(128);primaryKey"` // Setting key.
	Value     JSONText  `gorm:"column:value"`                 // JSON encoded value.
	UpdatedAt time.Time `gorm:"not null"`                     // Last update timestamp.
}
