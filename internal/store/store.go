// Package store defines the durable persistence contracts the auth engine
// depends on: the credential store (user records behind a unique-email
// index) and the token revocation list. Implementations live in the
// postgres and memory subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned by Create when the normalized email is
	// already taken. It is the backstop invariant for concurrent
	// registration commits: the unique index decides the winner.
	ErrDuplicateEmail = errors.New("email already registered")
)

// User is the durable account record. Email is stored normalized
// (trimmed, lower-cased); PasswordHash is always set, even for federated
// accounts, which carry a random unusable hash.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Phone         string
	Bio           string
	Role          string
	IsActive      bool
	EmailVerified bool
	ExternalID    string
	CreatedAt     time.Time
}

// UserStore is the credential store contract.
type UserStore interface {
	// Create persists a new user. Fails with ErrDuplicateEmail when the
	// normalized email is taken.
	Create(ctx context.Context, user *User) error
	// GetByEmail looks up a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByID looks up a user by ID.
	GetByID(ctx context.Context, id string) (*User, error)
	// UpdatePasswordHash replaces the stored hash for the user.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// MarkEmailVerified records out-of-band email confirmation, e.g. an
	// identity provider asserting a verified address.
	MarkEmailVerified(ctx context.Context, id string) error
}

// RevocationStore is the token revocation list. Presence of a jti is
// terminal: a revoked token stays rejected for the rest of its natural
// lifetime regardless of a valid signature.
type RevocationStore interface {
	// Revoke inserts jti into the list. Idempotent: re-revoking is a no-op.
	// expiresAt is the token's natural expiry, kept for eviction.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// IsRevoked is an O(1) membership check.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// PurgeExpired evicts entries whose tokens have expired anyway and
	// returns how many rows were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
