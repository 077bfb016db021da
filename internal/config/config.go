// Package config handles resolving configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// LogLevel is the minimum level of log records emitted.
type LogLevel string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// SessionStore names a backend for session state.
type SessionStore string

// Supported session backends.
const (
	// SessionStoreMemory keeps sessions in an in-process LRU cache. Sessions
	// do not survive a restart.
	SessionStoreMemory SessionStore = "memory"
	// SessionStoreDB keeps sessions in the SQLite database alongside users.
	SessionStoreDB SessionStore = "sqlite"
)

// Bounds for the bcrypt work factor accepted outside of dev mode.
const (
	MinBcryptCost = 10
	MaxBcryptCost = 14
)

// Config is the resolved configuration of the service.
type Config struct {
	LogLevel       LogLevel `yaml:"log_level"`
	DevMode        bool     `yaml:"dev_mode"`
	WebAddress     string   `yaml:"web_address"`
	MetricsAddress string   `yaml:"metrics_address"`
	DBFilepath     string   `yaml:"db_filepath"`
	BcryptCost     int      `yaml:"bcrypt_cost"`
	HashWorkers    int      `yaml:"hash_workers"`
	Session        Session  `yaml:"session"`
}

// Session configures the session cookie and its backing store.
type Session struct {
	Store         SessionStore  `yaml:"store"`
	CookieName    string        `yaml:"cookie_name"`
	MaxAge        time.Duration `yaml:"max_age"`
	// SecureCookie requires HTTPS in front of the web address. Dev mode
	// serves plain HTTP and never marks the cookie secure.
	SecureCookie  bool          `yaml:"secure_cookie"`
	CacheBytes    int64         `yaml:"cache_bytes"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Default returns a version of the config with all default values populated.
func Default() *Config {
	return &Config{
		LogLevel:       LogLevelInfo,
		WebAddress:     "localhost:9999",
		MetricsAddress: "",
		DBFilepath:     filepath.Join(xdg.DataHome, "gatekeep", "db.sqlite"),
		BcryptCost:     MinBcryptCost,
		HashWorkers:    runtime.NumCPU(),
		Session: Session{
			Store:         SessionStoreDB,
			CookieName:    "gatekeep_session",
			MaxAge:        24 * time.Hour,
			SecureCookie:  true,
			CacheBytes:    16 * 1024 * 1024, // 16 MiB
			SweepInterval: 10 * time.Minute,
		},
	}
}

// Load loads a YAML configuration file from a path, merges it with defaults, and
// validates it for completeness.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // allow the config file to be loaded from anywhere
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// writeHeader is prepended to config files created by [Write].
const writeHeader = `# session.secure_cookie keeps browsers from sending the session cookie over
# plain HTTP: serve web_address behind HTTPS, or set dev_mode for local use.
`

// Write marshals cfg as YAML to path, readable only by the owner.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	data = append([]byte(writeHeader), data...)
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file to %s: %w", path, err)
	}
	return nil
}

// SecureCookie reports whether the session cookie is marked Secure.
func (c *Config) SecureCookie() bool {
	return c.Session.SecureCookie && !c.DevMode
}

// Validate reports every invalid field of the config.
func (c *Config) Validate() error {
	var errs []error
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.WebAddress == "" {
		errs = append(errs, errors.New("web_address is required"))
	}
	if c.DBFilepath == "" {
		errs = append(errs, errors.New("db_filepath is required"))
	}
	minCost, maxCost := MinBcryptCost, MaxBcryptCost
	if c.DevMode {
		minCost, maxCost = bcrypt.MinCost, bcrypt.MaxCost
	}
	if c.BcryptCost < minCost || c.BcryptCost > maxCost {
		errs = append(errs, fmt.Errorf("bcrypt_cost must be within [%d, %d], got %d", minCost, maxCost, c.BcryptCost))
	}
	if c.HashWorkers < 1 {
		errs = append(errs, fmt.Errorf("hash_workers must be positive, got %d", c.HashWorkers))
	}
	errs = append(errs, c.Session.validate())
	return errors.Join(errs...)
}

func (s Session) validate() error {
	var errs []error
	switch s.Store {
	case SessionStoreMemory:
		if s.CacheBytes <= 0 {
			errs = append(errs, errors.New("session.cache_bytes must be positive for the memory store"))
		}
	case SessionStoreDB:
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", s.Store))
	}
	if s.CookieName == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}
	if s.MaxAge < time.Second {
		errs = append(errs, fmt.Errorf("session.max_age must be at least 1s, got %s", s.MaxAge))
	}
	if s.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.sweep_interval must be positive, got %s", s.SweepInterval))
	}
	return errors.Join(errs...)
}
