package webauth

import (
	"context"
	"time"
)

// Providers recorded on User.Provider
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// User is the only persistent entity. Email is the natural key: at most one
// User exists per email no matter which entry path created it.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Provider     string    `json:"provider,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns the username or a generic label when none is set.
func (u *User) DisplayName() string {
	if u == nil || u.Username == "" {
		return "User"
	}
	return u.Username
}

// UserDirectory persists users keyed by email.
type UserDirectory interface {
	// FindByEmail returns ErrUserNotFound when no user owns the email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Create stores a new user and assigns its ID. It returns ErrEmailTaken
	// when the email is already registered, including when a concurrent
	// create won the race.
	Create(ctx context.Context, user *User) (*User, error)

	// Save updates an existing user in place, keyed by email.
	Save(ctx context.Context, user *User) (*User, error)
}
