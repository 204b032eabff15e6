package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"userhub/internal/config"
	"userhub/internal/domain"
)

// Profile is the normalized identity extracted from a provider account.
type Profile struct {
	Email string
	Name  string
}

// Provider is the per-provider capability the flow controller drives.
// Adding a provider means adding an implementation and a registry entry;
// the controller's control flow never changes.
type Provider interface {
	// Name returns the registry key, e.g. "google".
	Name() string

	// AuthCodeURL builds the provider authorization URL embedding the
	// CSRF state token.
	AuthCodeURL(state string) string

	// Exchange trades the authorization code for a provider access token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchProfile retrieves and normalizes the provider profile.
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// ProviderRegistry is the immutable name → Provider map handed to the
// flow controller at construction time.
type ProviderRegistry map[string]Provider

// NewProviderRegistry builds the registry from configured credentials.
// Providers without a client ID are left unregistered.
func NewProviderRegistry(configs map[string]config.OAuthProviderConfig) ProviderRegistry {
	registry := make(ProviderRegistry)

	if cfg, ok := configs["google"]; ok && cfg.ClientID != "" {
		registry["google"] = NewGoogleProvider(cfg)
	}
	if cfg, ok := configs["github"]; ok && cfg.ClientID != "" {
		registry["github"] = NewGitHubProvider(cfg)
	}

	return registry
}

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider implements Provider for Google OAuth 2.0.
type GoogleProvider struct {
	config *oauth2.Config

	// UserInfoURL is overridable for tests.
	UserInfoURL string
}

// NewGoogleProvider creates a Google provider from the given credentials.
func NewGoogleProvider(cfg config.OAuthProviderConfig) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		UserInfoURL: defaultGoogleUserInfoURL,
	}
}

// Name returns "google".
func (p *GoogleProvider) Name() string { return "google" }

// AuthCodeURL builds the Google authorization URL.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the authorization code for an access token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// FetchProfile fetches the OpenID userinfo document and extracts email
// and display name.
func (p *GoogleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, body)
	}

	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	if info.Email == "" {
		return nil, domain.NewExternalServiceError("PROFILE_INCOMPLETE", "Provider profile is missing an email address", nil)
	}

	return &Profile{Email: info.Email, Name: info.Name}, nil
}

// GitHubProvider implements Provider for GitHub OAuth 2.0.
type GitHubProvider struct {
	config *oauth2.Config

	// newClient is overridable for tests.
	newClient func(httpClient *http.Client) *github.Client
}

// NewGitHubProvider creates a GitHub provider from the given credentials.
func NewGitHubProvider(cfg config.OAuthProviderConfig) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		},
		newClient: github.NewClient,
	}
}

// Name returns "github".
func (p *GitHubProvider) Name() string { return "github" }

// AuthCodeURL builds the GitHub authorization URL.
func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for an access token.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// FetchProfile fetches the authenticated GitHub user. GitHub hides the
// email on the user record when it is marked private, so the primary
// address from the emails listing is used as a fallback.
func (p *GitHubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.newClient(p.config.Client(ctx, token))

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch github user: %w", err)
	}

	email := user.GetEmail()
	if email == "" {
		emails, _, err := client.Users.ListEmails(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list github emails: %w", err)
		}
		for _, e := range emails {
			if e.GetPrimary() {
				email = e.GetEmail()
				break
			}
		}
	}
	if email == "" {
		return nil, domain.NewExternalServiceError("PROFILE_INCOMPLETE", "Provider profile is missing an email address", nil)
	}

	name := user.GetName()
	if name == "" {
		name = user.GetLogin()
	}

	return &Profile{Email: email, Name: name}, nil
}
