package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"userhub/internal/cache"
	"userhub/internal/domain"
)

// OAuthState is the context bound to a CSRF state token for the duration
// of one login attempt.
type OAuthState struct {
	Provider string    `json:"provider"`
	IssuedAt time.Time `json:"issued_at"`
}

// StateStore issues and redeems one-time CSRF state tokens for the OAuth
// redirect dance.
type StateStore interface {
	// Issue generates a random state token and stores the associated data
	// under it with the given TTL.
	Issue(ctx context.Context, state OAuthState, ttl time.Duration) (string, error)

	// Redeem returns the data bound to the token and removes it. A token
	// can be redeemed exactly once: missing, expired, or already-used
	// tokens fail with a not-found error, and concurrent redemption
	// attempts for the same token yield exactly one success.
	Redeem(ctx context.Context, token string) (*OAuthState, error)
}

const stateKeyPrefix = "oauth_state:"

type stateStore struct {
	store cache.Store
}

// NewStateStore creates a StateStore backed by the given TTL cache store.
// The store's GetDel must be atomic per key; both the Redis and memory
// implementations guarantee this.
func NewStateStore(store cache.Store) StateStore {
	return &stateStore{store: store}
}

// Issue generates a state token and stores the login context under it.
func (s *stateStore) Issue(ctx context.Context, state OAuthState, ttl time.Duration) (string, error) {
	token, err := generateStateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	if err := s.store.Set(ctx, stateKeyPrefix+token, payload, ttl); err != nil {
		return "", domain.NewExternalServiceError("STATE_STORE_UNAVAILABLE", "Failed to store OAuth state", err)
	}

	return token, nil
}

// Redeem atomically fetches and deletes the state bound to the token.
func (s *stateStore) Redeem(ctx context.Context, token string) (*OAuthState, error) {
	payload, err := s.store.GetDel(ctx, stateKeyPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, domain.NewNotFoundError("STATE_NOT_FOUND", "OAuth state is missing, expired, or already used")
		}
		return nil, domain.NewExternalServiceError("STATE_STORE_UNAVAILABLE", "Failed to redeem OAuth state", err)
	}

	var state OAuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		// The token was consumed either way; treat a corrupt entry as a
		// rejected callback rather than proceeding with unknown context.
		return nil, domain.NewNotFoundError("STATE_NOT_FOUND", "OAuth state is missing, expired, or already used")
	}

	return &state, nil
}

// generateStateToken returns a cryptographically random URL-safe token.
func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
