package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"userhub/internal/cache"
	"userhub/internal/domain"
	"userhub/internal/repository"
)

// UserService covers password-based registration and login, cached user
// reads, and the onboarding upsert.
type UserService interface {
	// Register creates a local (password) account.
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)

	// Login authenticates a local account and mints a session token.
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)

	// GetUser fetches a user, serving from the entity cache when possible.
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// ListUsers returns a page of users.
	ListUsers(ctx context.Context, offset, limit int) ([]*domain.User, error)

	// CompleteOnboarding finds or creates the user for the submitted
	// identity, applies the profile fields, marks onboarding complete,
	// and mints a fresh session token.
	CompleteOnboarding(ctx context.Context, req domain.OnboardingRequest) (*domain.User, *domain.AuthResult, error)
}

// cachedUser is the versioned envelope for user records in the entity
// cache. Bumping the version invalidates every stale entry on read.
type cachedUser struct {
	Version int          `json:"v"`
	User    *domain.User `json:"user"`
}

const (
	cachedUserVersion = 1
	userCacheTTL      = 60 * time.Second
	userKeyPrefix     = "user:"
)

type userService struct {
	users  repository.UserRepository
	tokens TokenService
	store  cache.Store
	logger *slog.Logger
}

// NewUserService creates a UserService. The cache store is optional; a nil
// store disables entity caching.
func NewUserService(users repository.UserRepository, tokens TokenService, store cache.Store, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{users: users, tokens: tokens, store: store, logger: logger}
}

// Register creates a local account.
func (s *userService) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	exists, err := s.users.ExistsByEmailAndProvider(ctx, req.Email, domain.LocalProvider)
	if err != nil {
		return nil, domain.NewInternalError("USER_CHECK_FAILED", "Failed to check user existence", err)
	}
	if exists {
		return nil, domain.NewConflictError("EMAIL_EXISTS", "A user with this email already exists")
	}

	now := time.Now()
	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Provider:  domain.LocalProvider,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		return nil, domain.NewInternalError("USER_CREATION_FAILED", "Failed to create user", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// Login authenticates a local account.
func (s *userService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	user, err := s.users.GetByEmailAndProvider(ctx, req.Email, domain.LocalProvider)
	if err != nil {
		return nil, domain.NewAuthenticationError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, domain.NewAuthenticationError("INVALID_CREDENTIALS", "Invalid email or password")
	}

	token, expiresAt, err := s.tokens.Mint(user)
	if err != nil {
		return nil, domain.NewInternalError("TOKEN_MINT_FAILED", "Failed to mint session token", err)
	}

	return &domain.AuthResult{
		Token:               token,
		UserID:              user.ID,
		Provider:            user.Provider,
		OnboardingCompleted: user.OnboardingCompleted,
		ExpiresAt:           expiresAt,
	}, nil
}

// GetUser fetches a user, consulting the entity cache first. Cache-store
// failures degrade to a repository read and never fail the request.
func (s *userService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if user := s.readCachedUser(ctx, id); user != nil {
		return user, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		return nil, domain.NewInternalError("USER_LOOKUP_FAILED", "Failed to look up user", err)
	}

	user.PasswordHash = ""
	s.writeCachedUser(ctx, user)
	return user, nil
}

// ListUsers returns a page of users.
func (s *userService) ListUsers(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	users, err := s.users.List(ctx, offset, limit)
	if err != nil {
		return nil, domain.NewInternalError("USER_LIST_FAILED", "Failed to list users", err)
	}
	for _, u := range users {
		u.PasswordHash = ""
	}
	return users, nil
}

// CompleteOnboarding applies profile fields and marks onboarding complete.
func (s *userService) CompleteOnboarding(ctx context.Context, req domain.OnboardingRequest) (*domain.User, *domain.AuthResult, error) {
	user, err := s.users.GetByEmailAndProvider(ctx, req.Email, req.Provider)
	if err != nil {
		var domainErr *domain.Error
		if !errors.As(err, &domainErr) || domainErr.Type != domain.NotFoundError {
			return nil, nil, domain.NewInternalError("USER_LOOKUP_FAILED", "Failed to look up user", err)
		}

		now := time.Now()
		user = &domain.User{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Provider:  req.Provider,
			CreatedAt: now,
			UpdatedAt: now,
		}
		user.Name = req.Name
		user.Phone = req.Phone
		user.Address = req.Address
		user.Company = req.Company
		user.OnboardingCompleted = true

		if err := s.users.Create(ctx, user); err != nil {
			return nil, nil, domain.NewInternalError("USER_CREATION_FAILED", "Failed to create user", err)
		}
	} else {
		user.Name = req.Name
		user.Phone = req.Phone
		user.Address = req.Address
		user.Company = req.Company
		user.OnboardingCompleted = true
		user.UpdatedAt = time.Now()

		if err := s.users.Update(ctx, user); err != nil {
			return nil, nil, domain.NewInternalError("USER_UPDATE_FAILED", "Failed to update user", err)
		}
	}

	s.invalidateCachedUser(ctx, user.ID)

	token, expiresAt, err := s.tokens.Mint(user)
	if err != nil {
		return nil, nil, domain.NewInternalError("TOKEN_MINT_FAILED", "Failed to mint session token", err)
	}

	user.PasswordHash = ""
	return user, &domain.AuthResult{
		Token:               token,
		UserID:              user.ID,
		Provider:            user.Provider,
		OnboardingCompleted: user.OnboardingCompleted,
		ExpiresAt:           expiresAt,
	}, nil
}

func (s *userService) readCachedUser(ctx context.Context, id string) *domain.User {
	if s.store == nil {
		return nil
	}

	payload, err := s.store.Get(ctx, userKeyPrefix+id)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("user cache read failed", "user_id", id, "error", err)
		}
		return nil
	}

	var entry cachedUser
	if err := json.Unmarshal(payload, &entry); err != nil || entry.Version != cachedUserVersion || entry.User == nil {
		// Stale or corrupt envelope: drop it and fall through to the
		// repository.
		_ = s.store.Delete(ctx, userKeyPrefix+id)
		return nil
	}

	return entry.User
}

func (s *userService) writeCachedUser(ctx context.Context, user *domain.User) {
	if s.store == nil {
		return
	}

	payload, err := json.Marshal(cachedUser{Version: cachedUserVersion, User: user})
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, userKeyPrefix+user.ID, payload, userCacheTTL); err != nil {
		s.logger.Warn("user cache write failed", "user_id", user.ID, "error", err)
	}
}

func (s *userService) invalidateCachedUser(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, userKeyPrefix+id); err != nil {
		s.logger.Warn("user cache invalidation failed", "user_id", id, "error", err)
	}
}
