package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"userhub/internal/cache"
	"userhub/internal/domain"
	"userhub/internal/repository"
)

// fakeProvider is a canned Provider for flow controller tests.
type fakeProvider struct {
	name        string
	profile     *Profile
	exchangeErr error
	profileErr  error

	exchangedCode string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	p.exchangedCode = code
	return &oauth2.Token{AccessToken: "provider-access-token"}, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, _ *oauth2.Token) (*Profile, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return p.profile, nil
}

type oauthFixture struct {
	service  OAuthService
	states   StateStore
	users    repository.UserRepository
	tokens   TokenService
	provider *fakeProvider
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()

	provider := &fakeProvider{
		name:    "google",
		profile: &Profile{Email: "alice@example.com", Name: "Alice"},
	}
	states := NewStateStore(cache.NewMemoryStore())
	users := repository.NewMemoryUserRepository()
	tokens := NewTokenService("test-secret", time.Hour)

	service := NewOAuthService(OAuthServiceConfig{
		Providers: ProviderRegistry{"google": provider},
		States:    states,
		Tokens:    tokens,
		Users:     users,
		StateTTL:  time.Minute,
	})

	return &oauthFixture{
		service:  service,
		states:   states,
		users:    users,
		tokens:   tokens,
		provider: provider,
	}
}

// stateFromAuthURL extracts the state query parameter from an authorization URL.
func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestOAuthService_StartLogin(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)

	// The embedded state must be redeemable, bound to the provider.
	state, err := f.states.Redeem(ctx, stateFromAuthURL(t, authURL))
	require.NoError(t, err)
	assert.Equal(t, "google", state.Provider)
}

func TestOAuthService_StartLoginUnknownProvider(t *testing.T) {
	f := newOAuthFixture(t)

	_, err := f.service.StartLogin(context.Background(), "gitlab")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ValidationError, domainErr.Type)
	assert.Equal(t, "UNKNOWN_PROVIDER", domainErr.Code)
}

func TestOAuthService_CallbackCreatesUser(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)

	result, err := f.service.HandleCallback(ctx, "google", stateFromAuthURL(t, authURL), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "auth-code", f.provider.exchangedCode)
	assert.Equal(t, "google", result.Provider)
	assert.False(t, result.OnboardingCompleted)

	claims, err := f.tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.UserID, claims.UserID)

	user, err := f.users.GetByEmailAndProvider(ctx, "alice@example.com", "google")
	require.NoError(t, err)
	assert.Equal(t, result.UserID, user.ID)
	assert.False(t, user.OnboardingCompleted)
}

func TestOAuthService_CallbackReusesExistingUser(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	existing := &domain.User{
		ID:                  "existing-user",
		Email:               "alice@example.com",
		Name:                "Alice",
		Provider:            "google",
		OnboardingCompleted: true,
	}
	require.NoError(t, f.users.Create(ctx, existing))

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)

	result, err := f.service.HandleCallback(ctx, "google", stateFromAuthURL(t, authURL), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "existing-user", result.UserID)
	assert.True(t, result.OnboardingCompleted)
}

func TestOAuthService_CallbackStateIsSingleUse(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = f.service.HandleCallback(ctx, "google", state, "auth-code")
	require.NoError(t, err)

	_, err = f.service.HandleCallback(ctx, "google", state, "auth-code")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.NotFoundError, domainErr.Type)
}

func TestOAuthService_CallbackUnknownProviderLeavesStateIntact(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = f.service.HandleCallback(ctx, "gitlab", state, "auth-code")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNKNOWN_PROVIDER", domainErr.Code)

	// The provider check runs before redemption, so the state survives.
	_, err = f.service.HandleCallback(ctx, "google", state, "auth-code")
	assert.NoError(t, err)
}

func TestOAuthService_CallbackProviderMismatch(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	github := &fakeProvider{
		name:    "github",
		profile: &Profile{Email: "alice@example.com", Name: "Alice"},
	}
	f.service = NewOAuthService(OAuthServiceConfig{
		Providers: ProviderRegistry{"google": f.provider, "github": github},
		States:    f.states,
		Tokens:    f.tokens,
		Users:     f.users,
		StateTTL:  time.Minute,
	})

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, err = f.service.HandleCallback(ctx, "github", state, "auth-code")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "STATE_PROVIDER_MISMATCH", domainErr.Code)

	// Redemption happened, so the state is burned for the real provider too.
	_, err = f.service.HandleCallback(ctx, "google", state, "auth-code")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.NotFoundError, domainErr.Type)
}

func TestOAuthService_CallbackExchangeFailure(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()
	f.provider.exchangeErr = errors.New("provider unavailable")

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)

	_, err = f.service.HandleCallback(ctx, "google", stateFromAuthURL(t, authURL), "auth-code")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ExternalServiceError, domainErr.Type)
	assert.Equal(t, "TOKEN_EXCHANGE_FAILED", domainErr.Code)
}

func TestOAuthService_CallbackProfileFailure(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()
	f.provider.profileErr = fmt.Errorf("userinfo endpoint: %w", errors.New("503"))

	authURL, err := f.service.StartLogin(ctx, "google")
	require.NoError(t, err)

	_, err = f.service.HandleCallback(ctx, "google", stateFromAuthURL(t, authURL), "auth-code")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ExternalServiceError, domainErr.Type)
	assert.Equal(t, "PROFILE_FETCH_FAILED", domainErr.Code)
}
