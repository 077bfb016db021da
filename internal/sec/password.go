package sec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// ErrInvalidInput is returned when a password cannot be hashed: it is empty
	// or longer than the 72 bytes bcrypt accepts.
	ErrInvalidInput Error = "invalid password input"
	// ErrCorruptHash is returned when a stored hash cannot be parsed.
	ErrCorruptHash Error = "corrupt password hash"
)

// Error is an error type returned by the sec package.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of password. Two calls with the same
	// password produce different hashes.
	Hash(ctx context.Context, password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is (false, nil);
	// an error is only returned for a malformed hash or a canceled ctx.
	Verify(ctx context.Context, password, hash string) (bool, error)
	// DummyVerify performs the same work as Verify against a throwaway hash,
	// so a lookup miss costs as much as a password mismatch.
	DummyVerify(ctx context.Context, password string)
}

// Hasher is a bcrypt [PasswordHasher]. At most the configured number of
// hashes are computed at once; callers beyond that wait for a free slot or
// for their context to end.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy func() []byte
}

// NewHasher creates a Hasher with the given bcrypt cost and concurrency limit.
func NewHasher(cost, workers int) *Hasher {
	workers = max(workers, 1)
	return &Hasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(workers)),
		dummy: sync.OnceValue(func() []byte {
			hash, err := bcrypt.GenerateFromPassword([]byte("not a real password"), cost)
			if err != nil {
				// never matches, and CompareHashAndPassword still fails fast
				return nil
			}
			return hash
		}),
	}
}

// Hash satisfies [PasswordHasher].
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	} else if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify satisfies [PasswordHasher].
func (h *Hasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	switch err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrCorruptHash, err)
	}
}

// DummyVerify satisfies [PasswordHasher].
func (h *Hasher) DummyVerify(ctx context.Context, password string) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer h.slots.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummy(), []byte(password))
}

var _ PasswordHasher = (*Hasher)(nil)
