package models

import "time"

// GatewayAPIKey stores the verifier of a gateway-issued API key.
type GatewayAPIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID      string `gorm:"type:varchar(255);not null;index"`     // Owning subject.
	KeyPrefix   string `gorm:"type:varchar(16);not null;uniqueIndex"` // Public lookup prefix.
	KeyHash     string `gorm:"type:text;not null"`                    // Bcrypt hash of the full key.
	Fingerprint string `gorm:"type:varchar(64);not null;uniqueIndex"` // SHA-256 hex of the full key.
	Name        string `gorm:"type:text"`                             // Optional label.
	IsActive    bool   `gorm:"not null;default:true"`                 // Accepted for authentication when true.

	LastUsedAt *time.Time // Last successful authentication.
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// RetiredGatewayPrefix records prefixes of permanently deleted gateway keys.
type RetiredGatewayPrefix struct {
	KeyPrefix string    `gorm:"type:varchar(16);primaryKey"` // Prefix that can never be issued again.
	RetiredAt time.Time `gorm:"not null"`                    // Deletion timestamp.
}
