//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	wa "github.com/panyam/webauth"
)

// AutoMigrate creates or updates the users table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements wa.UserDirectory using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// TranslateError is opt-in, so also look at the raw driver error
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*wa.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wa.ErrUserNotFound
		}
		return nil, err
	}
	return model.toUser(), nil
}

func (s *UserStore) Create(ctx context.Context, user *wa.User) (*wa.User, error) {
	model := fromUser(user)
	model.ID = uuid.NewString()
	if model.Provider == "" {
		model.Provider = wa.ProviderLocal
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return nil, wa.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return model.toUser(), nil
}

func (s *UserStore) Save(ctx context.Context, user *wa.User) (*wa.User, error) {
	provider := user.Provider
	if provider == "" {
		provider = wa.ProviderLocal
	}
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("email = ?", user.Email).
		Updates(map[string]any{
			"username":      user.Username,
			"password_hash": user.PasswordHash,
			"provider":      provider,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("save user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, wa.ErrUserNotFound
	}
	return s.FindByEmail(ctx, user.Email)
}
