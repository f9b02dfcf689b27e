// Package auth issues and verifies the signed credentials presented at
// connection handshake, and hashes account passwords. Verification fails
// closed: without a configured signing secret no token is ever accepted.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/threadmind/threadmind/core"
)

// ErrNoSecret is returned when signing or verification is attempted
// without a configured secret.
var ErrNoSecret = errors.New("auth: signing secret not configured")

// ErrInvalidToken is returned for absent, malformed, expired, or
// wrongly-signed tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// DefaultTokenTTL matches the original cookie lifetime of seven days.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Tokens signs and verifies HMAC JWTs carrying the user identity.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token authority. An empty secret is allowed at
// construction so the server can boot, but every Issue and Verify call
// then fails with ErrNoSecret.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token identifying user.
func (t *Tokens) Issue(user core.User) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the user ID
// it identifies.
func (t *Tokens) Verify(tokenString string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrNoSecret
	}
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
