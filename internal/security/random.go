package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphanumericCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const lowerAlphanumericCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateRandomString returns a cryptographically random alphanumeric string.
func GenerateRandomString(length int) (string, error) {
	return randomFromCharset(alphanumericCharset, length)
}

func randomFromCharset(charset string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("security: invalid random length %d", length)
	}
	out := make([]byte, length)
	limit := big.NewInt(int64(len(charset)))
	for i := range out {
		num, errRand := rand.Int(rand.Reader, limit)
		if errRand != nil {
			return "", fmt.Errorf("security: read random: %w", errRand)
		}
		out[i] = charset[num.Int64()]
	}
	return string(out), nil
}
