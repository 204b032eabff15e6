package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a registered account. Identity is the (email, provider)
// pair, not email alone: the same address signing in through two different
// OAuth providers yields two distinct users.
type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone,omitempty"`
	Address             string    `json:"address,omitempty"`
	Company             string    `json:"company,omitempty"`
	Provider            string    `json:"provider"`
	PasswordHash        string    `json:"-"` // Never serialize password hash
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// LocalProvider is the provider value for password-based accounts.
const LocalProvider = "local"

// SetPassword hashes and sets the user's password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return NewInternalError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies the provided password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return NewAuthenticationError("INVALID_PASSWORD", "Password does not match")
	}
	return nil
}

// Validate validates the user data.
func (u *User) Validate() error {
	if u.Email == "" {
		return NewValidationError("INVALID_EMAIL", "Email is required", map[string]interface{}{
			"field": "email",
		})
	}

	if u.Name == "" {
		return NewValidationError("INVALID_NAME", "Name is required", map[string]interface{}{
			"field": "name",
		})
	}

	if u.Provider == "" {
		return NewValidationError("INVALID_PROVIDER", "Provider is required", map[string]interface{}{
			"field": "provider",
		})
	}

	return nil
}

// CreateUserRequest represents the data needed to register a local user.
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest represents local login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// OnboardingRequest carries the profile fields submitted when a user
// completes onboarding.
type OnboardingRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Company  string `json:"company,omitempty"`
	Provider string `json:"provider" binding:"required"`
}

// AuthResult is what every successful authentication path resolves to:
// a signed session token plus the identity it asserts.
type AuthResult struct {
	Token               string    `json:"token"`
	UserID              string    `json:"user_id"`
	Provider            string    `json:"provider"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	ExpiresAt           time.Time `json:"expires_at"`
}
