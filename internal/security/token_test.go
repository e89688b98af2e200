package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestTokenVerifier_HS256(t *testing.T) {
	verifier, err := NewTokenVerifier(TokenVerifierConfig{HMACSecret: "secret", Issuer: "https://idp.example/realms/main"})
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	token := signHS256(t, "secret", jwt.MapClaims{
		"sub":   "user-1",
		"email": "u1@example.com",
		"iss":   "https://idp.example/realms/main",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	identity, errVerify := verifier.Verify(token)
	if errVerify != nil {
		t.Fatalf("Verify: %v", errVerify)
	}
	if identity.Subject != "user-1" || identity.Email != "u1@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	verifier, _ := NewTokenVerifier(TokenVerifierConfig{HMACSecret: "secret", Issuer: "main"})
	cases := map[string]string{
		"wrong secret": signHS256(t, "other", jwt.MapClaims{"sub": "u", "iss": "main", "exp": time.Now().Add(time.Hour).Unix()}),
		"expired":      signHS256(t, "secret", jwt.MapClaims{"sub": "u", "iss": "main", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no exp":       signHS256(t, "secret", jwt.MapClaims{"sub": "u", "iss": "main"}),
		"wrong issuer": signHS256(t, "secret", jwt.MapClaims{"sub": "u", "iss": "other", "exp": time.Now().Add(time.Hour).Unix()}),
		"no subject":   signHS256(t, "secret", jwt.MapClaims{"iss": "main", "exp": time.Now().Add(time.Hour).Unix()}),
		"garbage":      "not-a-jwt",
	}
	for name, token := range cases {
		if _, err := verifier.Verify(token); err != ErrInvalidToken {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewTokenVerifier_RequiresKey(t *testing.T) {
	if _, err := NewTokenVerifier(TokenVerifierConfig{}); err == nil {
		t.Fatalf("expected error without verification key")
	}
}
