package auth

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stolasapp/gatekeep/internal/sec"
	"github.com/stolasapp/gatekeep/internal/storage"
	"github.com/stolasapp/gatekeep/internal/storage/db"
)

var errStoreDown = errors.New("store down")

// brokenSessions fails every operation.
type brokenSessions struct{}

func (brokenSessions) CreateSession(context.Context, db.Session) error { return errStoreDown }
func (brokenSessions) GetSession(context.Context, string) (db.Session, error) {
	return db.Session{}, errStoreDown
}
func (brokenSessions) DeleteSession(context.Context, string) error { return errStoreDown }
func (brokenSessions) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, errStoreDown
}

func newTestAuthority(t *testing.T) (*Authority, *storage.DB) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store, err := storage.NewDB(t.Context(), filepath.Join(t.TempDir(), "db.sqlite"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewAuthority(store, store, sec.NewHasher(bcrypt.MinCost, 2), time.Hour, logger), store
}

func TestAuthority_Register(t *testing.T) {
	t.Parallel()

	authority, store := newTestAuthority(t)

	identity, err := authority.Register(t.Context(), "sue", "1234")
	require.NoError(t, err)
	assert.NotZero(t, identity.ID)
	assert.Equal(t, "sue", identity.Username)

	user, err := store.GetUserByName(t.Context(), "sue")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("1234"), user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword(user.PasswordHash, []byte("1234")))

	_, err = authority.Register(t.Context(), "sue", "5678")
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = authority.Register(t.Context(), "empty", "")
	require.ErrorIs(t, err, sec.ErrInvalidInput)
}

func TestAuthority_Register_Race(t *testing.T) {
	t.Parallel()

	authority, _ := newTestAuthority(t)

	const racers = 4
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Go(func() {
			_, errs[i] = authority.Register(t.Context(), "sue", "1234")
		})
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsernameTaken):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, taken)
}

func TestAuthority_Login(t *testing.T) {
	t.Parallel()

	authority, _ := newTestAuthority(t)
	identity, err := authority.Register(t.Context(), "sue", "1234")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()
		session, err := authority.Login(t.Context(), "sue", "1234")
		require.NoError(t, err)
		assert.Equal(t, identity, session.Identity)
		assert.NotEmpty(t, session.Token)
		assert.True(t, IsAuthenticated(session))

		found, err := authority.Lookup(t.Context(), session.Token)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, identity, found.Identity)
		assert.Empty(t, found.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		session, err := authority.Login(t.Context(), "sue", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, session)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()
		session, err := authority.Login(t.Context(), "bob", "1234")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, session)
	})

	t.Run("each login is a new session", func(t *testing.T) {
		t.Parallel()
		first, err := authority.Login(t.Context(), "sue", "1234")
		require.NoError(t, err)
		second, err := authority.Login(t.Context(), "sue", "1234")
		require.NoError(t, err)
		assert.NotEqual(t, first.Token, second.Token)
	})
}

func TestAuthority_Login_CorruptHash(t *testing.T) {
	t.Parallel()

	authority, store := newTestAuthority(t)
	_, err := store.CreateUser(t.Context(), "sue", []byte("garbage"))
	require.NoError(t, err)

	_, err = authority.Login(t.Context(), "sue", "1234")
	require.ErrorIs(t, err, sec.ErrCorruptHash)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeHashFailure, oopsErr.Code())
}

func TestAuthority_Login_StoreFailure(t *testing.T) {
	t.Parallel()

	authority, store := newTestAuthority(t)
	_, err := authority.Register(t.Context(), "sue", "1234")
	require.NoError(t, err)

	authority.sessions = brokenSessions{}
	_, err = authority.Login(t.Context(), "sue", "1234")
	require.ErrorIs(t, err, errStoreDown)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeStoreFailure, oopsErr.Code())

	require.NoError(t, store.Close())
	_, err = authority.Login(t.Context(), "sue", "1234")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthority_Logout(t *testing.T) {
	t.Parallel()

	authority, _ := newTestAuthority(t)
	_, err := authority.Register(t.Context(), "sue", "1234")
	require.NoError(t, err)
	session, err := authority.Login(t.Context(), "sue", "1234")
	require.NoError(t, err)

	assert.Equal(t, LoggedOut, authority.Logout(t.Context(), session.Token))
	assert.Equal(t, NoSession, authority.Logout(t.Context(), session.Token))
	assert.Equal(t, NoSession, authority.Logout(t.Context(), ""))
	assert.Equal(t, NoSession, authority.Logout(t.Context(), "never-issued"))

	found, err := authority.Lookup(t.Context(), session.Token)
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.False(t, IsAuthenticated(found))

	assert.Equal(t, "logged out", LoggedOut.String())
	assert.Equal(t, "no session", NoSession.String())
}

func TestAuthority_Logout_StoreFailure(t *testing.T) {
	t.Parallel()

	authority, _ := newTestAuthority(t)
	authority.sessions = brokenSessions{}
	assert.Equal(t, NoSession, authority.Logout(t.Context(), "token"))
}

func TestAuthority_Lookup(t *testing.T) {
	t.Parallel()

	authority, store := newTestAuthority(t)
	_, err := authority.Register(t.Context(), "sue", "1234")
	require.NoError(t, err)

	now := time.Now()
	authority.now = func() time.Time { return now }
	session, err := authority.Login(t.Context(), "sue", "1234")
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		found, err := authority.Lookup(t.Context(), "")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("live", func(t *testing.T) {
		found, err := authority.Lookup(t.Context(), session.Token)
		require.NoError(t, err)
		assert.True(t, IsAuthenticated(found))
	})

	t.Run("expired", func(t *testing.T) {
		authority.now = func() time.Time { return now.Add(authority.MaxAge()) }
		found, err := authority.Lookup(t.Context(), session.Token)
		require.NoError(t, err)
		assert.Nil(t, found)

		_, err = store.GetSession(t.Context(), sec.DigestToken(session.Token))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		authority.sessions = brokenSessions{}
		_, err := authority.Lookup(t.Context(), session.Token)
		require.ErrorIs(t, err, errStoreDown)
	})
}

func TestAuthority_Sweep(t *testing.T) {
	t.Parallel()

	authority, store := newTestAuthority(t)
	_, err := authority.Register(t.Context(), "sue", "1234")
	require.NoError(t, err)

	past := time.Now().Add(-2 * authority.MaxAge())
	authority.now = func() time.Time { return past }
	session, err := authority.Login(t.Context(), "sue", "1234")
	require.NoError(t, err)
	authority.now = time.Now

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- authority.Sweep(ctx, time.Millisecond) }()

	digest := sec.DigestToken(session.Token)
	assert.Eventually(t, func() bool {
		_, err := store.GetSession(t.Context(), digest)
		return errors.Is(err, storage.ErrNotFound)
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestSessionContext(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SessionFromContext(t.Context()))

	session := &Session{Identity: Identity{ID: 1, Username: "sue"}}
	ctx := WithSession(t.Context(), session)
	assert.Same(t, session, SessionFromContext(ctx))
}
