// Package repository provides data access for userhub entities.
package repository

import (
	"context"

	"userhub/internal/domain"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmailAndProvider retrieves a user by its identity pair.
	GetByEmailAndProvider(ctx context.Context, email, provider string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// ExistsByEmailAndProvider checks if a user exists for the pair.
	ExistsByEmailAndProvider(ctx context.Context, email, provider string) (bool, error)

	// List retrieves users with pagination.
	List(ctx context.Context, offset, limit int) ([]*domain.User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)
}
