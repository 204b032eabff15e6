// Package services contains the business services behind the HTTP surface:
// session token issuance, OAuth state handling, the OAuth flow controller,
// and user resolution.
package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"userhub/internal/domain"
)

// TokenService mints and validates signed session tokens. Tokens are
// stateless: validity is purely signature plus expiry, with no server-side
// revocation list. Shortening the TTL is the only mitigation for a
// compromised token.
type TokenService interface {
	// Mint creates a signed session token for the user.
	Mint(user *domain.User) (token string, expiresAt time.Time, err error)

	// Verify checks signature and expiry and returns the decoded claims.
	// Bad signature and expired token are deliberately collapsed into one
	// Invalid outcome: both mean "re-authenticate".
	Verify(token string) (*SessionClaims, error)
}

// SessionClaims represents the claims carried by a session token.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is the single failure outcome of Verify.
var ErrInvalidToken = domain.NewAuthenticationError("INVALID_TOKEN", "Invalid or expired token")

type tokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenService creates a TokenService signing with the given symmetric
// secret. The secret is held in memory only and must never be logged.
func NewTokenService(secret string, ttl time.Duration) TokenService {
	return &tokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "userhub",
	}
}

// Mint creates a signed session token for the user.
func (s *tokenService) Mint(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := &SessionClaims{
		UserID:   user.ID,
		Provider: user.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the decoded claims.
func (s *tokenService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
