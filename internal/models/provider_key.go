package models

import "time"

// ProviderKey stores an upstream provider credential owned by a dashboard user.
type ProviderKey struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	UserID       string `gorm:"type:varchar(255);not null;index:idx_provider_keys_user_provider,priority:1"` // Owning subject.
	ProviderName string `gorm:"type:varchar(32);not null;index:idx_provider_keys_user_provider,priority:2"`  // Canonical provider name.
	Name         string `gorm:"type:text"`                                                                    // Optional label.

	SecretEncrypted   string `gorm:"type:text;not null"`        // Sealed secret, base64(nonce || ciphertext).
	SecretFingerprint string `gorm:"type:varchar(64);not null"` // Keyed HMAC of the secret for duplicate checks.

	IsSelected    bool       `gorm:"not null;default:false"` // Default key for the provider.
	DisabledUntil *time.Time `gorm:"index"`                  // Temporarily skipped by failover until this time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
