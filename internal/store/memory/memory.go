// Package memory provides in-process implementations of the store
// contracts for tests and local development. Not suitable for
// multi-instance deployment: state is process-private.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aimlabs/eduauth/internal/store"
)

// UserStore is a map-backed store.UserStore.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*store.User
	byEmail map[string]string
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*store.User),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Create(ctx context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return store.ErrDuplicateEmail
	}

	clone := *user
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	s.byID[clone.ID] = &clone
	s.byEmail[clone.Email] = clone.ID
	*user = clone
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	user.EmailVerified = true
	return nil
}

// SetActive toggles the active flag. Test helper for deactivation flows.
func (s *UserStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byID[id]; ok {
		user.IsActive = active
	}
}

// RevocationStore is a map-backed store.RevocationStore.
type RevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewRevocationStore creates an empty in-memory revocation list.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{revoked: make(map[string]time.Time)}
}

func (s *RevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.revoked[jti]; exists {
		return nil
	}
	s.revoked[jti] = expiresAt
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, revoked := s.revoked[jti]
	return revoked, nil
}

func (s *RevocationStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for jti, expiresAt := range s.revoked {
		if expiresAt.Before(now) {
			delete(s.revoked, jti)
			removed++
		}
	}
	return removed, nil
}
