package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/influxdata/influxdb/pkg/snowflake"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stolasapp/gatekeep/internal/storage/db"
)

// DB is a [Store] backed by a SQLite database.
type DB struct {
	ids     *snowflake.Generator
	db      *sql.DB
	queries *db.Queries
}

// NewDB opens (and migrates) the SQLite database at dbPath.
func NewDB(ctx context.Context, dbPath string, logger *slog.Logger) (*DB, error) {
	handle, err := db.Open(ctx, logger, dbPath)
	if err != nil {
		return nil, err
	}
	return &DB{
		ids:     snowflake.New(rand.IntN(1023)), //nolint:gosec,mnd // this isn't for crypto
		db:      handle,
		queries: db.New(handle),
	}, nil
}

// Close satisfies the [Store] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// ListUsers satisfies the [Users] interface.
func (d *DB) ListUsers(ctx context.Context) ([]db.User, error) {
	return d.queries.GetUsers(ctx)
}

// GetUserByName satisfies the [Users] interface.
func (d *DB) GetUserByName(ctx context.Context, name string) (db.User, error) {
	user, err := d.queries.GetUserByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// CreateUser satisfies the [Users] interface.
func (d *DB) CreateUser(ctx context.Context, name string, passwordHash []byte) (db.User, error) {
	user, err := d.queries.CreateUser(ctx, db.CreateUserParams{
		ID:           d.ids.Next(),
		Name:         name,
		PasswordHash: passwordHash,
	})
	// the insert is ON CONFLICT DO NOTHING, so a lost race returns no row
	if errors.Is(err, sql.ErrNoRows) || isConstraintViolation(err) {
		return user, ErrAlreadyExists
	}
	return user, err
}

// DeleteUser satisfies the [Users] interface.
func (d *DB) DeleteUser(ctx context.Context, userID uint64) error {
	return d.queries.DeleteUser(ctx, userID)
}

// CreateSession satisfies the [Sessions] interface.
func (d *DB) CreateSession(ctx context.Context, session db.Session) error {
	err := d.queries.CreateSession(ctx, db.CreateSessionParams{
		TokenHash: session.TokenHash,
		UserID:    session.UserID,
		Username:  session.Username,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if isConstraintViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// GetSession satisfies the [Sessions] interface.
func (d *DB) GetSession(ctx context.Context, tokenHash string) (db.Session, error) {
	session, err := d.queries.GetSession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return session, ErrNotFound
	}
	return session, err
}

// DeleteSession satisfies the [Sessions] interface.
func (d *DB) DeleteSession(ctx context.Context, tokenHash string) error {
	switch n, err := d.queries.DeleteSession(ctx, tokenHash); {
	case err != nil:
		return err
	case n == 0:
		return ErrNotFound
	default:
		return nil
	}
}

// DeleteExpiredSessions satisfies the [Sessions] interface.
func (d *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return d.queries.DeleteExpiredSessions(ctx, now.UTC())
}

func isConstraintViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		sqlite3.SQLITE_CONSTRAINT: // extended result codes disabled
		return true
	default:
		return false
	}
}

var _ Store = (*DB)(nil)
