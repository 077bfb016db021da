package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/stolasapp/gatekeep/internal/sec"
	"github.com/stolasapp/gatekeep/internal/storage"
	"github.com/stolasapp/gatekeep/internal/storage/db"
)

// Identity is the public face of a user: never the password hash.
type Identity struct {
	ID       uint64 `json:"user_id"`
	Username string `json:"username"`
}

// Session is an authenticated binding between a client and one user.
type Session struct {
	Identity

	// Token is the plaintext token for the client. It is only populated on
	// the session returned by [Authority.Login].
	Token     string
	ExpiresAt time.Time
}

// LogoutOutcome is the result of [Authority.Logout].
type LogoutOutcome int

// Logout outcomes.
const (
	NoSession LogoutOutcome = iota
	LoggedOut
)

// String returns the message reported to the client.
func (o LogoutOutcome) String() string {
	if o == LoggedOut {
		return "logged out"
	}
	return "no session"
}

// Authority registers users and owns the lifecycle of their sessions.
type Authority struct {
	users    storage.Users
	sessions storage.Sessions
	hasher   sec.PasswordHasher
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthority creates an Authority whose sessions last maxAge.
func NewAuthority(
	users storage.Users,
	sessions storage.Sessions,
	hasher sec.PasswordHasher,
	maxAge time.Duration,
	logger *slog.Logger,
) *Authority {
	return &Authority{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		maxAge:   maxAge,
		logger:   logger.With(slog.String("component", "auth")),
		now:      time.Now,
	}
}

// MaxAge is how long a new session remains valid.
func (a *Authority) MaxAge() time.Duration { return a.maxAge }

// Register creates a user with the given credentials. The password must
// already satisfy the password policy; [sec.ErrInvalidInput] is returned if
// the hasher still rejects it. A name that is taken, including one that was
// taken concurrently, yields [ErrUsernameTaken].
func (a *Authority) Register(ctx context.Context, username, password string) (Identity, error) {
	hash, err := a.hasher.Hash(ctx, password)
	if errors.Is(err, sec.ErrInvalidInput) {
		return Identity{}, err
	} else if err != nil {
		return Identity{}, oops.Code(CodeHashFailure).
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := a.users.CreateUser(ctx, username, []byte(hash))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return Identity{}, ErrUsernameTaken
	} else if err != nil {
		return Identity{}, oops.Code(CodeStoreFailure).
			With("operation", "create user").
			Wrap(err)
	}

	a.logger.InfoContext(ctx, "user registered", slog.String("username", user.Name))
	return Identity{ID: user.ID, Username: user.Name}, nil
}

// Login verifies the credentials against the stored user and opens a new
// session. Unknown users and wrong passwords both yield
// [ErrInvalidCredentials] after the same amount of hashing work.
func (a *Authority) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := a.users.GetUserByName(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		a.hasher.DummyVerify(ctx, password)
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, oops.Code(CodeStoreFailure).
			With("operation", "get user by name").
			Wrap(err)
	}

	ok, err := a.hasher.Verify(ctx, password, string(user.PasswordHash))
	if err != nil {
		return nil, oops.Code(CodeHashFailure).
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(err)
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	token, digest, err := sec.NewSessionToken()
	if err != nil {
		return nil, oops.Code(CodeTokenFailure).
			With("operation", "generate session token").
			Wrap(err)
	}

	now := a.now()
	record := db.Session{
		TokenHash: digest,
		UserID:    user.ID,
		Username:  user.Name,
		CreatedAt: now,
		ExpiresAt: now.Add(a.maxAge),
	}
	if err = a.sessions.CreateSession(ctx, record); err != nil {
		return nil, oops.Code(CodeStoreFailure).
			With("operation", "create session").
			With("user_id", user.ID).
			Wrap(err)
	}

	a.logger.InfoContext(ctx, "user logged in", slog.String("username", user.Name))
	return &Session{
		Identity:  Identity{ID: user.ID, Username: user.Name},
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Logout ends the session named by token. It never fails: a missing token, an
// unknown session, and a store failure all report [NoSession].
func (a *Authority) Logout(ctx context.Context, token string) LogoutOutcome {
	if token == "" {
		return NoSession
	}
	switch err := a.sessions.DeleteSession(ctx, sec.DigestToken(token)); {
	case err == nil:
		return LoggedOut
	case errors.Is(err, storage.ErrNotFound):
		return NoSession
	default:
		a.logger.WarnContext(ctx, "failed to destroy session", slog.Any("error", err))
		return NoSession
	}
}

// Lookup resolves token to its session. A nil session with a nil error means
// the token is absent, unknown or expired.
func (a *Authority) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil //nolint:nilnil // anonymous is not an error
	}
	digest := sec.DigestToken(token)
	record, err := a.sessions.GetSession(ctx, digest)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil //nolint:nilnil // anonymous is not an error
	} else if err != nil {
		return nil, oops.Code(CodeStoreFailure).
			With("operation", "get session").
			Wrap(err)
	}

	if record.ExpiredAt(a.now()) {
		if err = a.sessions.DeleteSession(ctx, digest); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.logger.WarnContext(ctx, "failed to delete expired session", slog.Any("error", err))
		}
		return nil, nil //nolint:nilnil // expired is anonymous
	}

	return &Session{
		Identity:  Identity{ID: record.UserID, Username: record.Username},
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// IsAuthenticated reports whether session holds a user identity.
func IsAuthenticated(session *Session) bool {
	return session != nil && session.ID != 0 && session.Username != ""
}

// Sweep deletes expired sessions every interval until ctx is done.
func (a *Authority) Sweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.sessions.DeleteExpiredSessions(ctx, a.now())
			if err != nil {
				a.logger.WarnContext(ctx, "failed to sweep expired sessions", slog.Any("error", err))
				continue
			}
			if n > 0 {
				a.logger.DebugContext(ctx, "swept expired sessions", slog.Int64("count", n))
			}
		}
	}
}
