package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	wa "github.com/panyam/webauth"
)

// FSUserStore stores one JSON file per user, named after the email.
type FSUserStore struct {
	StoragePath string
	mu          sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) getUserPath(email string) string {
	// escaping keeps separators out of the file name
	return filepath.Join(s.StoragePath, "users", url.PathEscape(email)+".json")
}

func (s *FSUserStore) FindByEmail(ctx context.Context, email string) (*wa.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(email)
}

func (s *FSUserStore) read(email string) (*wa.User, error) {
	data, err := os.ReadFile(s.getUserPath(email))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wa.ErrUserNotFound
		}
		return nil, err
	}

	var user wa.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", email, err)
	}
	return &user, nil
}

func (s *FSUserStore) Create(ctx context.Context, user *wa.User) (*wa.User, error) {
	out := *user
	out.ID = uuid.NewString()
	now := time.Now()
	out.CreatedAt = now
	out.UpdatedAt = now

	path := s.getUserPath(out.Email)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := createExclusiveFile(path, data); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, wa.ErrEmailTaken
		}
		return nil, err
	}
	return &out, nil
}

func (s *FSUserStore) Save(ctx context.Context, user *wa.User) (*wa.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(user.Email)
	if err != nil {
		return nil, err
	}
	out := *user
	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	out.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeAtomicFile(s.getUserPath(out.Email), data); err != nil {
		return nil, err
	}
	return &out, nil
}
