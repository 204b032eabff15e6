package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"userhub/internal/domain"
	"userhub/internal/repository"
)

// OAuthService orchestrates the OAuth login flow: redirect to provider,
// callback validation, profile normalization, user resolution, and session
// token issuance.
type OAuthService interface {
	// StartLogin validates the provider, issues a CSRF state token bound
	// to it, and returns the provider authorization URL to redirect to.
	StartLogin(ctx context.Context, provider string) (string, error)

	// HandleCallback completes a login attempt. The state token is
	// redeemed exactly once; any state failure rejects the callback
	// before the code is exchanged.
	HandleCallback(ctx context.Context, provider, stateToken, code string) (*domain.AuthResult, error)
}

// OAuthServiceConfig wires the flow controller's collaborators.
type OAuthServiceConfig struct {
	Providers       ProviderRegistry
	States          StateStore
	Tokens          TokenService
	Users           repository.UserRepository
	StateTTL        time.Duration
	ProviderTimeout time.Duration
}

type oauthService struct {
	providers       ProviderRegistry
	states          StateStore
	tokens          TokenService
	users           repository.UserRepository
	stateTTL        time.Duration
	providerTimeout time.Duration
}

// NewOAuthService creates the flow controller. The provider registry is
// treated as immutable after construction.
func NewOAuthService(cfg OAuthServiceConfig) OAuthService {
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 5 * time.Minute
	}
	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	return &oauthService{
		providers:       cfg.Providers,
		states:          cfg.States,
		tokens:          cfg.Tokens,
		users:           cfg.Users,
		stateTTL:        cfg.StateTTL,
		providerTimeout: cfg.ProviderTimeout,
	}
}

// StartLogin issues a state token and builds the authorization URL.
func (s *oauthService) StartLogin(ctx context.Context, providerName string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", domain.NewValidationError("UNKNOWN_PROVIDER", "OAuth provider is not registered", map[string]interface{}{
			"provider": providerName,
		})
	}

	state, err := s.states.Issue(ctx, OAuthState{
		Provider: providerName,
		IssuedAt: time.Now(),
	}, s.stateTTL)
	if err != nil {
		return "", err
	}

	return provider.AuthCodeURL(state), nil
}

// HandleCallback completes a login attempt.
func (s *oauthService) HandleCallback(ctx context.Context, providerName, stateToken, code string) (*domain.AuthResult, error) {
	// Unsupported providers are rejected before any state redemption or
	// network call.
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, domain.NewValidationError("UNKNOWN_PROVIDER", "OAuth provider is not registered", map[string]interface{}{
			"provider": providerName,
		})
	}

	state, err := s.states.Redeem(ctx, stateToken)
	if err != nil {
		return nil, err
	}

	// A state issued for one provider cannot complete another's callback.
	if state.Provider != providerName {
		return nil, domain.NewAuthenticationError("STATE_PROVIDER_MISMATCH", "OAuth state was issued for a different provider")
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	token, err := provider.Exchange(providerCtx, code)
	if err != nil {
		return nil, domain.NewExternalServiceError("TOKEN_EXCHANGE_FAILED", "Failed to exchange authorization code", err)
	}

	profile, err := provider.FetchProfile(providerCtx, token)
	if err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		return nil, domain.NewExternalServiceError("PROFILE_FETCH_FAILED", "Failed to fetch provider profile", err)
	}

	user, err := s.resolveUser(ctx, profile, providerName)
	if err != nil {
		return nil, err
	}

	sessionToken, expiresAt, err := s.tokens.Mint(user)
	if err != nil {
		return nil, domain.NewInternalError("TOKEN_MINT_FAILED", "Failed to mint session token", err)
	}

	return &domain.AuthResult{
		Token:               sessionToken,
		UserID:              user.ID,
		Provider:            user.Provider,
		OnboardingCompleted: user.OnboardingCompleted,
		ExpiresAt:           expiresAt,
	}, nil
}

// resolveUser looks up the user by (email, provider) and creates one with
// onboarding pending when absent.
func (s *oauthService) resolveUser(ctx context.Context, profile *Profile, providerName string) (*domain.User, error) {
	user, err := s.users.GetByEmailAndProvider(ctx, profile.Email, providerName)
	if err == nil {
		return user, nil
	}

	var domainErr *domain.Error
	if !errors.As(err, &domainErr) || domainErr.Type != domain.NotFoundError {
		return nil, domain.NewInternalError("USER_LOOKUP_FAILED", "Failed to look up user", err)
	}

	now := time.Now()
	user = &domain.User{
		ID:                  uuid.New().String(),
		Email:               profile.Email,
		Name:                profile.Name,
		Provider:            providerName,
		OnboardingCompleted: false,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.NewInternalError("USER_CREATION_FAILED", "Failed to create user", err)
	}

	return user, nil
}
