package security

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	secretCipherInfo      = "keymanager provider secret v1"
	secretFingerprintInfo = "keymanager provider fingerprint v1"
)

// ErrMissingEncryptionKey indicates no master key was configured.
var ErrMissingEncryptionKey = errors.New("missing encryption key (set `encryption-key` in config file or ENCRYPTION_KEY)")

// SecretCipher seals provider secrets at rest and fingerprints them for duplicate checks.
type SecretCipher struct {
	aead           cipher.AEAD
	fingerprintKey []byte
}

// NewSecretCipher derives the sealing and fingerprint keys from a master key.
func NewSecretCipher(masterKey string) (*SecretCipher, error) {
	masterKey = strings.TrimSpace(masterKey)
	if masterKey == "" {
		return nil, ErrMissingEncryptionKey
	}

	sealKey, errSeal := deriveKey(masterKey, secretCipherInfo, chacha20poly1305.KeySize)
	if errSeal != nil {
		return nil, errSeal
	}
	fingerprintKey, errFingerprint := deriveKey(masterKey, secretFingerprintInfo, sha256.Size)
	if errFingerprint != nil {
		return nil, errFingerprint
	}

	aead, errAEAD := chacha20poly1305.NewX(sealKey)
	if errAEAD != nil {
		return nil, fmt.Errorf("security: init cipher: %w", errAEAD)
	}
	return &SecretCipher{aead: aead, fingerprintKey: fingerprintKey}, nil
}

func deriveKey(masterKey, info string, size int) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(info))
	out := make([]byte, size)
	if _, errRead := io.ReadFull(reader, out); errRead != nil {
		return nil, fmt.Errorf("security: derive key: %w", errRead)
	}
	return out, nil
}

// Encrypt returns base64(nonce || ciphertext) for plaintext.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("security: cipher not initialized")
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, errNonce := io.ReadFull(rand.Reader, nonce); errNonce != nil {
		return "", fmt.Errorf("security: read nonce: %w", errNonce)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *SecretCipher) Decrypt(encoded string) (string, error) {
	if c == nil || c.aead == nil {
		return "", fmt.Errorf("security: cipher not initialized")
	}
	raw, errDecode := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if errDecode != nil {
		return "", fmt.Errorf("security: decode sealed secret: %w", errDecode)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("security: sealed secret too short")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, errOpen := c.aead.Open(nil, nonce, sealed, nil)
	if errOpen != nil {
		return "", errors.New("security: open sealed secret failed")
	}
	return string(plaintext), nil
}

// Fingerprint returns a keyed, deterministic digest of plaintext.
func (c *SecretCipher) Fingerprint(plaintext string) string {
	if c == nil {
		return ""
	}
	mac := hmac.New(sha256.New, c.fingerprintKey)
	_, _ = mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
