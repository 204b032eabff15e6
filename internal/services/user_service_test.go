package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/internal/cache"
	"userhub/internal/domain"
	"userhub/internal/repository"
)

// countingRepository wraps a UserRepository and counts GetByID calls so cache
// behavior is observable.
type countingRepository struct {
	repository.UserRepository
	getByIDCalls int
}

func (r *countingRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.getByIDCalls++
	return r.UserRepository.GetByID(ctx, id)
}

// failingStore simulates a cache backend outage.
type failingStore struct{}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error { return errCacheDown }
func (failingStore) Get(context.Context, string) ([]byte, error)              { return nil, errCacheDown }
func (failingStore) GetDel(context.Context, string) ([]byte, error)           { return nil, errCacheDown }
func (failingStore) Delete(context.Context, string) error                     { return errCacheDown }
func (failingStore) Close() error                                             { return nil }

var errCacheDown = domain.NewInternalError("CACHE_DOWN", "cache unavailable", nil)

func newUserService(t *testing.T, store cache.Store) (UserService, *countingRepository, TokenService) {
	t.Helper()

	repo := &countingRepository{UserRepository: repository.NewMemoryUserRepository()}
	tokens := NewTokenService("test-secret", time.Hour)
	return NewUserService(repo, tokens, store, nil), repo, tokens
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc, _, tokens := newUserService(t, cache.NewMemoryStore())
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LocalProvider, user.Provider)
	assert.Empty(t, user.PasswordHash)

	result, err := svc.Login(ctx, domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.UserID)

	claims, err := tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newUserService(t, cache.NewMemoryStore())
	ctx := context.Background()

	req := domain.CreateUserRequest{Email: "alice@example.com", Name: "Alice", Password: "s3cret-password"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ConflictError, domainErr.Type)
}

func TestUserService_LoginWrongPassword(t *testing.T) {
	svc, _, _ := newUserService(t, cache.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	for _, password := range []string{"wrong-password", ""} {
		_, err = svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: password})
		var domainErr *domain.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
	}
}

func TestUserService_LoginUnknownEmail(t *testing.T) {
	svc, _, _ := newUserService(t, cache.NewMemoryStore())

	_, err := svc.Login(context.Background(), domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_CREDENTIALS", domainErr.Code)
}

func TestUserService_GetUserServesFromCache(t *testing.T) {
	svc, repo, _ := newUserService(t, cache.NewMemoryStore())
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	first, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	second, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.getByIDCalls, "second read must come from the cache")
}

func TestUserService_GetUserDropsCorruptCacheEntry(t *testing.T) {
	store := cache.NewMemoryStore()
	svc, repo, _ := newUserService(t, store)
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "user:"+user.ID, []byte("{not json"), time.Minute))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, 1, repo.getByIDCalls)
}

func TestUserService_GetUserDropsStaleEnvelopeVersion(t *testing.T) {
	store := cache.NewMemoryStore()
	svc, repo, _ := newUserService(t, store)
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	stale, err := json.Marshal(map[string]interface{}{"v": 99, "user": user})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "user:"+user.ID, stale, time.Minute))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, 1, repo.getByIDCalls, "stale envelope must fall through to the repository")
}

func TestUserService_GetUserDegradesWhenCacheFails(t *testing.T) {
	svc, _, _ := newUserService(t, failingStore{})
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserService_GetUserNotFound(t *testing.T) {
	svc, _, _ := newUserService(t, cache.NewMemoryStore())

	_, err := svc.GetUser(context.Background(), "missing-id")
	var domainErr *domain.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.NotFoundError, domainErr.Type)
}

func TestUserService_CompleteOnboardingNewUser(t *testing.T) {
	svc, _, tokens := newUserService(t, cache.NewMemoryStore())
	ctx := context.Background()

	user, result, err := svc.CompleteOnboarding(ctx, domain.OnboardingRequest{
		Email:    "bob@example.com",
		Name:     "Bob",
		Phone:    "555-0100",
		Address:  "1 Main St",
		Company:  "Acme",
		Provider: "google",
	})
	require.NoError(t, err)

	assert.True(t, user.OnboardingCompleted)
	assert.Equal(t, "google", user.Provider)
	assert.Equal(t, "Acme", user.Company)
	assert.True(t, result.OnboardingCompleted)

	claims, err := tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestUserService_CompleteOnboardingExistingUser(t *testing.T) {
	store := cache.NewMemoryStore()
	svc, repo, _ := newUserService(t, store)
	ctx := context.Background()

	existing := &domain.User{
		ID:       "oauth-user",
		Email:    "bob@example.com",
		Name:     "B.",
		Provider: "github",
	}
	require.NoError(t, repo.Create(ctx, existing))

	// Prime the entity cache so invalidation is observable.
	_, err := svc.GetUser(ctx, existing.ID)
	require.NoError(t, err)

	user, _, err := svc.CompleteOnboarding(ctx, domain.OnboardingRequest{
		Email:    "bob@example.com",
		Name:     "Bob",
		Phone:    "555-0100",
		Provider: "github",
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth-user", user.ID)
	assert.True(t, user.OnboardingCompleted)
	assert.Equal(t, "Bob", user.Name)

	// The stale cached copy must be gone.
	_, err = store.Get(ctx, "user:"+existing.ID)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestUserService_ListUsersStripsPasswordHash(t *testing.T) {
	svc, _, _ := newUserService(t, cache.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.CreateUserRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[0].PasswordHash)
}
