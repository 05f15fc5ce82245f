//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"
	wa "github.com/panyam/webauth"
)

// UserEntity is the Datastore entity for users
// Key format: the email, so the key itself enforces one user per email
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	ID           string         `datastore:"id"`
	Username     string         `datastore:"username,noindex"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	Provider     string         `datastore:"provider"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
	Version      int            `datastore:"version"`
}

func (e *UserEntity) ToUser() *wa.User {
	return &wa.User{
		ID:           e.ID,
		Username:     e.Username,
		Email:        e.Key.Name,
		PasswordHash: e.PasswordHash,
		Provider:     e.Provider,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}
