package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"golang.org/x/term"

	"github.com/stolasapp/gatekeep/internal/auth"
	"github.com/stolasapp/gatekeep/internal/config"
	"github.com/stolasapp/gatekeep/internal/sec"
	"github.com/stolasapp/gatekeep/internal/storage"
)

type configKey struct{}

func prompt(prompt string, mask bool) ([]byte, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if _, err := os.Stderr.WriteString(prompt); err != nil {
			return nil, err
		}
	}
	return readLine(os.Stdin, mask)
}

// cloned from term.readPasswordLine.
func readLine(stdin *os.File, mask bool) ([]byte, error) {
	if mask && term.IsTerminal(int(stdin.Fd())) {
		return term.ReadPassword(int(stdin.Fd()))
	}
	var buf [1]byte
	var ret []byte

	for {
		n, err := stdin.Read(buf[:])
		if n > 0 {
			switch buf[0] {
			case '\b':
				if len(ret) > 0 {
					ret = ret[:len(ret)-1]
				}
			case '\n':
				if runtime.GOOS != "windows" {
					return ret, nil
				}
				// otherwise ignore \n
			case '\r':
				if runtime.GOOS == "windows" {
					return ret, nil
				}
				// otherwise ignore \r
			default:
				ret = append(ret, buf[0]) //nolint:gosec // erroneous error
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(ret) > 0 {
				return ret, nil
			}
			return ret, err
		}
	}
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	ver := "unknown"
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			ver = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		ver += "-dev"
	}
	return ver
}

// backend is everything a command needs to act on the gate's state.
type backend struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *storage.DB
	sessions  storage.Sessions
	hasher    sec.PasswordHasher
	authority *auth.Authority
}

func (b *backend) Close() error { return b.store.Close() }

func loadBackend(ctx context.Context) (*backend, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, errors.New("config file resolution failed")
	}
	logger := slog.Default()
	store, err := storage.NewDB(ctx, cfg.DBFilepath, logger)
	if err != nil {
		return nil, err
	}

	var sessions storage.Sessions = store
	if cfg.Session.Store == config.SessionStoreMemory {
		sessions = storage.NewSessionCache(cfg.Session.CacheBytes, cfg.Session.MaxAge)
	}

	hasher := sec.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	return &backend{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		sessions:  sessions,
		hasher:    hasher,
		authority: auth.NewAuthority(store, sessions, hasher, cfg.Session.MaxAge, logger),
	}, nil
}
