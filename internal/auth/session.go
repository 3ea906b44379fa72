package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the owner identity asserted by the out-of-scope login
// system. This gateway only validates the signature and reads the claims; it
// never issues these tokens.
type SessionClaims struct {
	AccountID string `json:"sub"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// SessionValidator verifies management-surface JWTs with a shared HMAC secret.
type SessionValidator struct {
	secret []byte
}

func NewSessionValidator(secret string) *SessionValidator {
	return &SessionValidator{secret: []byte(secret)}
}

// Validate parses and verifies a session token, returning its claims.
func (v *SessionValidator) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.AccountID == "" {
		return nil, errors.New("session token missing subject")
	}

	return claims, nil
}

// Sign issues a session token. Only used by tests and local tooling; in
// production the login service signs with the shared secret.
func (v *SessionValidator) Sign(accountID, role string, ttl time.Duration) (string, error) {
	claims := &SessionClaims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
