package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "8080", cfg.GetServerPort())
	assert.Equal(t, "development", cfg.GetEnvironment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 24*time.Hour, cfg.GetJWTExpiration())
	assert.Equal(t, 5*time.Minute, cfg.GetStateTTL())
	assert.Equal(t, 10*time.Second, cfg.GetProviderTimeout())
	assert.True(t, cfg.GetRateLimitEnabled())
	assert.Equal(t, 100, cfg.GetRateLimitRequests())
	assert.Equal(t, time.Minute, cfg.GetRateLimitWindow())
	assert.Equal(t, 60*time.Second, cfg.GetCacheTTL())
	assert.Equal(t, 500*time.Millisecond, cfg.GetCacheTimeout())
	assert.Equal(t, []string{"GET /api/users", "GET /health"}, cfg.GetCachedEndpoints())
}

func TestNewConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CACHED_ENDPOINTS", "GET /api/users, GET /api/users/profile")
	t.Setenv("OAUTH_STATE_TTL", "2m")

	cfg := NewConfig()

	assert.Equal(t, "9090", cfg.GetServerPort())
	assert.Equal(t, 5, cfg.GetRateLimitRequests())
	assert.Equal(t, 30*time.Second, cfg.GetRateLimitWindow())
	assert.Equal(t, []string{"GET /api/users", "GET /api/users/profile"}, cfg.GetCachedEndpoints())
	assert.Equal(t, 2*time.Minute, cfg.GetStateTTL())
}

func TestNewConfig_ProviderRedirectURLs(t *testing.T) {
	t.Setenv("OAUTH_REDIRECT_BASE_URL", "https://api.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "google-id")
	t.Setenv("GITHUB_CLIENT_ID", "github-id")

	providers := NewConfig().GetProviders()

	require.Contains(t, providers, "google")
	require.Contains(t, providers, "github")
	assert.Equal(t, "https://api.example.com/auth/callback/google", providers["google"].RedirectURL)
	assert.Equal(t, "https://api.example.com/auth/callback/github", providers["github"].RedirectURL)
}

func TestValidate(t *testing.T) {
	longSecret := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"defaults are valid", func(*AppConfig) {}, ""},
		{"empty port", func(c *AppConfig) { c.serverPort = "" }, "server port"},
		{"short jwt secret", func(c *AppConfig) { c.jwtSecret = "short" }, "at least 32 characters"},
		{"default secret in production", func(c *AppConfig) { c.environment = "production" }, "set explicitly in production"},
		{
			"explicit secret in production",
			func(c *AppConfig) { c.environment = "production"; c.jwtSecret = longSecret },
			"",
		},
		{"bad environment", func(c *AppConfig) { c.environment = "qa" }, "environment must be one of"},
		{"zero rate limit", func(c *AppConfig) { c.rateLimitRequests = 0 }, "must be positive"},
		{"negative window", func(c *AppConfig) { c.rateLimitWindow = -time.Second }, "must be positive"},
		{"malformed cached endpoint", func(c *AppConfig) { c.cachedEndpoints = []string{"GET"} }, "METHOD /path"},
		{"cached endpoint without slash", func(c *AppConfig) { c.cachedEndpoints = []string{"GET api/users"} }, "METHOD /path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
