package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"userhub/internal/domain"
)

const userColumns = `id, email, name, phone, address, company, provider,
	password_hash, onboarding_completed, created_at, updated_at`

// PostgresUserRepository implements UserRepository backed by PostgreSQL.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Create creates a new user. A duplicate (email, provider) pair surfaces
// as a conflict error.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.Name, user.Phone, user.Address, user.Company,
		user.Provider, user.PasswordHash, user.OnboardingCompleted,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.NewConflictError("USER_EXISTS", "A user with this email and provider already exists")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmailAndProvider retrieves a user by its identity pair.
func (r *PostgresUserRepository) GetByEmailAndProvider(ctx context.Context, email, provider string) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND provider = $2`,
		email, provider))
}

// Update updates an existing user.
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET email = $2, name = $3, phone = $4, address = $5, company = $6,
		     provider = $7, password_hash = $8, onboarding_completed = $9,
		     updated_at = $10
		 WHERE id = $1`,
		user.ID, user.Email, user.Name, user.Phone, user.Address, user.Company,
		user.Provider, user.PasswordHash, user.OnboardingCompleted, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("USER_NOT_FOUND", "User not found")
	}
	return nil
}

// ExistsByEmailAndProvider checks if a user exists for the pair.
func (r *PostgresUserRepository) ExistsByEmailAndProvider(ctx context.Context, email, provider string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND provider = $2)`,
		email, provider,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// List retrieves users with pagination, newest first.
func (r *PostgresUserRepository) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := scanUser(rows, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Count returns the total number of users.
func (r *PostgresUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresUserRepository) scanOne(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	if err := scanUser(row, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("USER_NOT_FOUND", "User not found")
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner, user *domain.User) error {
	return row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Phone, &user.Address,
		&user.Company, &user.Provider, &user.PasswordHash,
		&user.OnboardingCompleted, &user.CreatedAt, &user.UpdatedAt,
	)
}

var _ UserRepository = (*PostgresUserRepository)(nil)
