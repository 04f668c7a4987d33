package authbase

import (
	"context"
	"strings"
	"time"
)

// Role controls what a user is allowed to do. Tokens never embed the role;
// it is always re-read from the store at verification time.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is one registered account. PasswordHash and the reset-token fields
// are opaque to everything outside the store and the Service; plaintext
// secrets are never persisted or logged.
//
// ResetTokenHash and ResetTokenExpiry are either both set or both nil.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	ResetTokenHash   string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}

// Profile is the public view of a User, safe to send to clients.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// PublicProfile returns the client-facing view of the user. It never
// includes the password hash or reset-token state.
func (u *User) PublicProfile() *Profile {
	return &Profile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// HasActiveReset reports whether a password reset is pending for the user.
func (u *User) HasActiveReset(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetTokenExpiry != nil && now.Before(*u.ResetTokenExpiry)
}

// NormalizeEmail canonicalizes an email address for storage and lookup.
// Uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore is the persistence contract for user accounts. The store is
// the single point of serialization between concurrent requests: it must
// enforce email uniqueness itself, and ConsumeResetToken must be a single
// atomic conditional update rather than a read-then-write.
type UserStore interface {
	// CreateUser persists a new user. Returns ErrEmailExists if another
	// user already holds the (normalized) email.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID fetches a user by ID. Returns ErrUserNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail fetches a user by normalized email.
	// Returns ErrUserNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUser rewrites the user's mutable fields (name, email, role).
	// Returns ErrEmailExists if changing the email collides with another
	// account, ErrUserNotFound if the user no longer exists.
	UpdateUser(ctx context.Context, user *User) error

	// SetResetToken records a pending reset for the user, overwriting any
	// earlier pending token (the earlier token is thereby superseded).
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// ClearResetToken removes any pending reset state for the user. Used
	// to roll back when the reset email could not be delivered. Clearing
	// when nothing is pending is a no-op.
	ClearResetToken(ctx context.Context, userID string) error

	// ConsumeResetToken atomically finds the user whose pending reset
	// matches tokenHash and is unexpired at now, sets the new password
	// hash, and clears the reset fields - all as one conditional update.
	// Returns the updated user, or ErrUserNotFound when no user matches
	// (wrong token, expired token, or already consumed).
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*User, error)

	// DeleteUser removes the account. Returns ErrUserNotFound if absent.
	DeleteUser(ctx context.Context, id string) error
}
