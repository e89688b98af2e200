package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a bearer token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifierConfig configures bearer token validation.
type TokenVerifierConfig struct {
	HMACSecret   string         // HS256 shared secret.
	PublicKey    *rsa.PublicKey // RS256 verification key (identity provider realm key).
	Issuer       string         // Expected iss claim, optional.
	Audience     string         // Expected aud claim, optional.
	SubjectClaim string         // Claim used as user id, defaults to "sub".
}

// Identity is the caller identity extracted from a validated token.
type Identity struct {
	Subject string
	Email   string
}

// TokenVerifier validates identity provider access tokens.
type TokenVerifier struct {
	cfg    TokenVerifierConfig
	parser *jwt.Parser
}

// NewTokenVerifier builds a verifier. At least one verification key is required.
func NewTokenVerifier(cfg TokenVerifierConfig) (*TokenVerifier, error) {
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.SubjectClaim = strings.TrimSpace(cfg.SubjectClaim)
	if cfg.SubjectClaim == "" {
		cfg.SubjectClaim = "sub"
	}
	if cfg.HMACSecret == "" && cfg.PublicKey == nil {
		return nil, errors.New("security: token verifier needs a jwt secret or public key")
	}

	methods := make([]string, 0, 2)
	if cfg.HMACSecret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.PublicKey != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &TokenVerifier{cfg: cfg, parser: jwt.NewParser(opts...)}, nil
}

// ParsePublicKeyPEM parses an RSA public key in PEM form.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	key, errParse := jwt.ParseRSAPublicKeyFromPEM(data)
	if errParse != nil {
		return nil, fmt.Errorf("security: parse public key: %w", errParse)
	}
	return key, nil
}

// Verify validates token and returns the caller identity.
func (v *TokenVerifier) Verify(token string) (Identity, error) {
	if v == nil || v.parser == nil {
		return Identity{}, ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	parsed, errParse := v.parser.ParseWithClaims(strings.TrimSpace(token), claims, v.keyFunc)
	if errParse != nil || parsed == nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	subject, _ := claims[v.cfg.SubjectClaim].(string)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Identity{}, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	return Identity{Subject: subject, Email: strings.TrimSpace(email)}, nil
}

func (v *TokenVerifier) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.cfg.HMACSecret == "" {
			return nil, ErrInvalidToken
		}
		return []byte(v.cfg.HMACSecret), nil
	case *jwt.SigningMethodRSA:
		if v.cfg.PublicKey == nil {
			return nil, ErrInvalidToken
		}
		return v.cfg.PublicKey, nil
	default:
		return nil, ErrInvalidToken
	}
}
