package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Gateway key layout: "hp_" + lookup prefix + secret tail.
const (
	GatewayKeyScheme       = "hp_"
	GatewayKeyPrefixLength = 6
	gatewayKeyTailLength   = 32
)

// ErrMalformedGatewayKey indicates a presented key does not match the gateway key layout.
var ErrMalformedGatewayKey = errors.New("malformed gateway key")

// dummyGatewayKeyHash is compared against when no key matches, so lookups take similar time.
var dummyGatewayKeyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOa5hnhtNGRjukDWO2xzg3sjQTL1dDQ2u")

// GatewayKeyMaterial is the output of GenerateGatewayKey.
type GatewayKeyMaterial struct {
	FullKey     string // Returned to the caller once.
	Prefix      string // Public lookup prefix.
	Hash        string // Bcrypt verifier.
	Fingerprint string // SHA-256 hex for O(1) lookup.
}

// GenerateGatewayKey creates a new gateway key and its stored verifiers.
func GenerateGatewayKey() (GatewayKeyMaterial, error) {
	prefix, errPrefix := randomFromCharset(lowerAlphanumericCharset, GatewayKeyPrefixLength)
	if errPrefix != nil {
		return GatewayKeyMaterial{}, errPrefix
	}
	tail, errTail := GenerateRandomString(gatewayKeyTailLength)
	if errTail != nil {
		return GatewayKeyMaterial{}, errTail
	}
	full := GatewayKeyScheme + prefix + tail

	hashed, errHash := bcrypt.GenerateFromPassword([]byte(full), bcrypt.DefaultCost)
	if errHash != nil {
		return GatewayKeyMaterial{}, fmt.Errorf("security: hash gateway key: %w", errHash)
	}
	return GatewayKeyMaterial{
		FullKey:     full,
		Prefix:      prefix,
		Hash:        string(hashed),
		Fingerprint: GatewayKeyFingerprint(full),
	}, nil
}

// GatewayKeyFingerprint returns the lookup fingerprint of a full gateway key.
func GatewayKeyFingerprint(full string) string {
	sum := sha256.Sum256([]byte(full))
	return hex.EncodeToString(sum[:])
}

// ParseGatewayKey validates the layout of a presented key and returns its prefix.
func ParseGatewayKey(full string) (string, error) {
	full = strings.TrimSpace(full)
	if !strings.HasPrefix(full, GatewayKeyScheme) {
		return "", ErrMalformedGatewayKey
	}
	body := strings.TrimPrefix(full, GatewayKeyScheme)
	if len(body) != GatewayKeyPrefixLength+gatewayKeyTailLength {
		return "", ErrMalformedGatewayKey
	}
	return body[:GatewayKeyPrefixLength], nil
}

// VerifyGatewayKey reports whether full matches the stored bcrypt hash.
func VerifyGatewayKey(hash, full string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(full)) == nil
}

// EqualizeGatewayKeyTiming burns one bcrypt comparison for unknown keys.
func EqualizeGatewayKeyTiming(full string) {
	_ = bcrypt.CompareHashAndPassword(dummyGatewayKeyHash, []byte(full))
}

// ValidGatewayKeyPrefix reports whether prefix has the addressing handle shape.
func ValidGatewayKeyPrefix(prefix string) bool {
	if len(prefix) != GatewayKeyPrefixLength {
		return false
	}
	for _, r := range prefix {
		if !strings.ContainsRune(lowerAlphanumericCharset, r) {
			return false
		}
	}
	return true
}
