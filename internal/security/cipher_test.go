package security

import (
	"strings"
	"testing"
)

func TestSecretCipher_RoundTrip(t *testing.T) {
	c, err := NewSecretCipher("master-key-for-tests")
	if err != nil {
		t.Fatalf("NewSecretCipher: %v", err)
	}
	sealed, errEncrypt := c.Encrypt("AIza-secret-value")
	if errEncrypt != nil {
		t.Fatalf("Encrypt: %v", errEncrypt)
	}
	if strings.Contains(sealed, "AIza-secret-value") {
		t.Fatalf("expected sealed value not to contain plaintext")
	}
	other, _ := c.Encrypt("AIza-secret-value")
	if other == sealed {
		t.Fatalf("expected random nonce to change ciphertext")
	}
	plain, errDecrypt := c.Decrypt(sealed)
	if errDecrypt != nil {
		t.Fatalf("Decrypt: %v", errDecrypt)
	}
	if plain != "AIza-secret-value" {
		t.Fatalf("expected round trip, got %q", plain)
	}
}

func TestSecretCipher_WrongKeyFails(t *testing.T) {
	a, _ := NewSecretCipher("key-a")
	b, _ := NewSecretCipher("key-b")
	sealed, _ := a.Encrypt("value")
	if _, err := b.Decrypt(sealed); err == nil {
		t.Fatalf("expected decrypt with other key to fail")
	}
	if _, err := a.Decrypt("not base64!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSecretCipher_Fingerprint(t *testing.T) {
	a, _ := NewSecretCipher("key-a")
	b, _ := NewSecretCipher("key-b")
	if a.Fingerprint("x") != a.Fingerprint("x") {
		t.Fatalf("expected deterministic fingerprint")
	}
	if a.Fingerprint("x") == a.Fingerprint("y") {
		t.Fatalf("expected distinct fingerprints for distinct secrets")
	}
	if a.Fingerprint("x") == b.Fingerprint("x") {
		t.Fatalf("expected fingerprint to depend on the master key")
	}
}

func TestNewSecretCipher_MissingKey(t *testing.T) {
	if _, err := NewSecretCipher("  "); err != ErrMissingEncryptionKey {
		t.Fatalf("expected ErrMissingEncryptionKey, got %v", err)
	}
}
