package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const tokenPrefix = "gw_"

// TokenManager handles opaque bearer token generation, digesting, and format
// validation. Only the SHA-256 digest of a token ever reaches storage.
type TokenManager struct {
	prefix string
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager() *TokenManager {
	return &TokenManager{prefix: tokenPrefix}
}

// Generate creates a new token in the format gw_<64 hex chars> (256 bits of
// entropy). Returns the plaintext (shown once to the owner) and its digest.
func (m *TokenManager) Generate() (plain, digest string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plain = m.prefix + hex.EncodeToString(randomBytes)

	sum := sha256.Sum256([]byte(plain))
	digest = hex.EncodeToString(sum[:])

	return plain, digest, nil
}

// Digest validates the token format and returns its SHA-256 digest.
func (m *TokenManager) Digest(plain string) (string, error) {
	if !strings.HasPrefix(plain, m.prefix) {
		return "", errors.New("invalid token format: missing prefix")
	}
	if len(plain) != len(m.prefix)+64 {
		return "", fmt.Errorf("invalid token format: expected %d chars, got %d", len(m.prefix)+64, len(plain))
	}
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:]), nil
}

// DisplayPrefix returns the first 10 characters of the plaintext, the only
// fragment of it that may ever appear in listings or logs.
func (m *TokenManager) DisplayPrefix(plain string) string {
	if len(plain) < 10 {
		return plain
	}
	return plain[:10]
}

// ConstantTimeDigestCompare compares two digests in constant time.
func ConstantTimeDigestCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
