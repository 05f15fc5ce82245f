//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"

	wa "github.com/panyam/webauth"
)

const KindUser = "User"

// UserStore implements wa.UserDirectory using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{
		client:    client,
		namespace: namespace,
	}
}

func (s *UserStore) userKey(email string) *datastore.Key {
	key := datastore.NameKey(KindUser, email, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*wa.User, error) {
	var entity UserEntity
	if err := s.client.Get(ctx, s.userKey(email), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, wa.ErrUserNotFound
		}
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) Create(ctx context.Context, user *wa.User) (*wa.User, error) {
	key := s.userKey(user.Email)
	now := time.Now()
	entity := &UserEntity{
		Key:          key,
		ID:           uuid.NewString(),
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Provider:     user.Provider,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if entity.Provider == "" {
		entity.Provider = wa.ProviderLocal
	}

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UserEntity
		err := tx.Get(key, &existing)
		if err == nil {
			return wa.ErrEmailTaken
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		_, err = tx.Put(key, entity)
		return err
	})
	if errors.Is(err, datastore.ErrConcurrentTransaction) {
		// retries ran out against a concurrent writer; it most likely created the user
		if _, findErr := s.FindByEmail(ctx, user.Email); findErr == nil {
			return nil, wa.ErrEmailTaken
		}
	}
	if err != nil {
		return nil, err
	}
	return entity.ToUser(), nil
}

func (s *UserStore) Save(ctx context.Context, user *wa.User) (*wa.User, error) {
	key := s.userKey(user.Email)
	var saved UserEntity
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if err := tx.Get(key, &saved); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return wa.ErrUserNotFound
			}
			return err
		}
		saved.Username = user.Username
		saved.PasswordHash = user.PasswordHash
		if user.Provider != "" {
			saved.Provider = user.Provider
		}
		saved.UpdatedAt = time.Now()
		saved.Version++
		_, err := tx.Put(key, &saved)
		return err
	})
	if err != nil {
		return nil, err
	}
	saved.Key = key
	return saved.ToUser(), nil
}
