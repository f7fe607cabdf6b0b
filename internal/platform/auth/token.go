package auth

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs session tokens with an HMAC key.
type TokenIssuer struct {
	Issuer     string
	SigningKey []byte
	TTL        time.Duration
}

// NewTokenIssuer returns an issuer. An empty key is replaced by a random one,
// which invalidates every token when the process restarts.
func NewTokenIssuer(issuer string, key []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	return &TokenIssuer{Issuer: issuer, SigningKey: key, TTL: ttl}, nil
}

// Issue returns a signed token for a session and its expiry.
func (i *TokenIssuer) Issue(email, role, sessionID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(i.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Issuer,
			Subject:   email,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

// Config returns the middleware configuration matching this issuer.
func (i *TokenIssuer) Config(sessions SessionValidator) JWTConfig {
	return JWTConfig{Issuer: i.Issuer, SigningKey: i.SigningKey, Sessions: sessions, Skipper: AuthSkipper}
}
