// Package storage provides the state management for users and sessions.
package storage

import (
	"context"
	"time"

	"github.com/stolasapp/gatekeep/internal/storage/db"
)

const (
	// ErrNotFound is returned when a user or session cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if a unique user or session already exists.
	ErrAlreadyExists Error = "already exists"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Users are the methods on a storage implementation that are responsible for
// accessing and creating users.
type Users interface {
	// ListUsers returns every registered user, ordered by name.
	ListUsers(ctx context.Context) ([]db.User, error)
	// GetUserByName returns a single user with the specified name. An
	// [ErrNotFound] is returned if the user name does not exist.
	GetUserByName(ctx context.Context, name string) (db.User, error)
	// CreateUser inserts a user with a store-assigned ID. An [ErrAlreadyExists]
	// error is returned if the name is already in use, including when a
	// concurrent request inserted it first.
	CreateUser(ctx context.Context, name string, passwordHash []byte) (db.User, error)
	// DeleteUser removes a user and all their sessions. Deleting a missing user
	// is not an error.
	DeleteUser(ctx context.Context, userID uint64) error
}

// Sessions are the methods on a storage implementation that are responsible
// for session state. Sessions are keyed by the digest of their token.
type Sessions interface {
	// CreateSession stores a new session. An [ErrAlreadyExists] is returned if
	// the digest is already in use.
	CreateSession(ctx context.Context, session db.Session) error
	// GetSession returns the session with the given digest. An [ErrNotFound]
	// is returned if it does not exist. Expired sessions may still be
	// returned; callers check the expiry.
	GetSession(ctx context.Context, tokenHash string) (db.Session, error)
	// DeleteSession removes the session with the given digest. An
	// [ErrNotFound] is returned if it did not exist.
	DeleteSession(ctx context.Context, tokenHash string) error
	// DeleteExpiredSessions removes the sessions expired at now and returns
	// how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the combination interface for [Users] and [Sessions].
type Store interface {
	Users
	Sessions
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close() error
}
