package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/die-net/lrucache"
	"github.com/gregjones/httpcache"

	"github.com/stolasapp/gatekeep/internal/storage/db"
)

// SessionCache is an in-process [Sessions] store. Sessions are kept in a
// size-bounded LRU cache, so under memory pressure the least recently used
// sessions are evicted early and their users must log in again.
type SessionCache struct {
	mu    sync.Mutex // serializes check-then-set in CreateSession
	cache httpcache.Cache
}

// NewSessionCache creates a SessionCache holding up to maxBytes of encoded
// sessions, each of which is dropped after maxAge regardless of use.
func NewSessionCache(maxBytes int64, maxAge time.Duration) *SessionCache {
	return &SessionCache{
		cache: lrucache.New(maxBytes, int64(maxAge.Seconds())),
	}
}

// CreateSession satisfies the [Sessions] interface.
func (s *SessionCache) CreateSession(_ context.Context, session db.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache.Get(session.TokenHash); ok {
		return ErrAlreadyExists
	}
	s.cache.Set(session.TokenHash, data)
	return nil
}

// GetSession satisfies the [Sessions] interface.
func (s *SessionCache) GetSession(_ context.Context, tokenHash string) (session db.Session, err error) {
	data, ok := s.cache.Get(tokenHash)
	if !ok {
		return session, ErrNotFound
	}
	if err = json.Unmarshal(data, &session); err != nil {
		return session, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

// DeleteSession satisfies the [Sessions] interface.
func (s *SessionCache) DeleteSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache.Get(tokenHash); !ok {
		return ErrNotFound
	}
	s.cache.Delete(tokenHash)
	return nil
}

// DeleteExpiredSessions satisfies the [Sessions] interface. The cache ages
// entries out on its own, so there is nothing to sweep.
func (s *SessionCache) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

var _ Sessions = (*SessionCache)(nil)
