package models

import "time"

// GatewayUser is the local projection of an identity provider subject.
type GatewayUser struct {
	Subject string `gorm:"type:varchar(255);primaryKey"` // Identity provider subject.
	Email   string `gorm:"type:text"`                    // Last seen email claim.

	CreatedAt   time.Time `gorm:"not null"` // First seen.
	UpdatedAt   time.Time `gorm:"not null"` // Last profile update.
	LastLoginAt time.Time `gorm:"not null"` // Last session sync.
}
