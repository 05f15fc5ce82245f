//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	wa "github.com/panyam/webauth"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"size:255"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string `gorm:"not null"`
	Provider     string `gorm:"size:32;default:local"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) toUser() *wa.User {
	return &wa.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Provider:     m.Provider,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromUser(u *wa.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Provider:     u.Provider,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
