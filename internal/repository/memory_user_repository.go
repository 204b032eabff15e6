package repository

import (
	"context"
	"sort"
	"sync"

	"userhub/internal/domain"
)

// MemoryUserRepository is an in-memory UserRepository used by unit tests
// and local development without a database.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User // keyed by ID
}

// NewMemoryUserRepository creates an empty in-memory repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.User)}
}

// Create creates a new user.
func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email && existing.Provider == user.Provider {
			return domain.NewConflictError("USER_EXISTS", "A user with this email and provider already exists")
		}
	}

	clone := *user
	r.users[user.ID] = &clone
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.NewNotFoundError("USER_NOT_FOUND", "User not found")
	}
	clone := *user
	return &clone, nil
}

// GetByEmailAndProvider retrieves a user by its identity pair.
func (r *MemoryUserRepository) GetByEmailAndProvider(_ context.Context, email, provider string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email && user.Provider == provider {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.NewNotFoundError("USER_NOT_FOUND", "User not found")
}

// Update updates an existing user.
func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; !exists {
		return domain.NewNotFoundError("USER_NOT_FOUND", "User not found")
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

// ExistsByEmailAndProvider checks if a user exists for the pair.
func (r *MemoryUserRepository) ExistsByEmailAndProvider(_ context.Context, email, provider string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email && user.Provider == provider {
			return true, nil
		}
	}
	return false, nil
}

// List retrieves users with pagination, newest first.
func (r *MemoryUserRepository) List(_ context.Context, offset, limit int) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		clone := *user
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Count returns the total number of users.
func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

var _ UserRepository = (*MemoryUserRepository)(nil)
