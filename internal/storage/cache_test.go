package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/gatekeep/internal/storage/db"
)

func TestSessionCache(t *testing.T) {
	t.Parallel()

	const maxBytes = 1 << 20
	cache := NewSessionCache(maxBytes, time.Hour)

	now := time.Now().UTC()
	session := db.Session{
		TokenHash: "digest",
		UserID:    42,
		Username:  "sue",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	_, err := cache.GetSession(t.Context(), session.TokenHash)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cache.CreateSession(t.Context(), session))
	require.ErrorIs(t, cache.CreateSession(t.Context(), session), ErrAlreadyExists)

	actual, err := cache.GetSession(t.Context(), session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, actual.UserID)
	assert.Equal(t, session.Username, actual.Username)
	assert.True(t, session.ExpiresAt.Equal(actual.ExpiresAt))

	n, err := cache.DeleteExpiredSessions(t.Context(), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, cache.DeleteSession(t.Context(), session.TokenHash))
	require.ErrorIs(t, cache.DeleteSession(t.Context(), session.TokenHash), ErrNotFound)
	_, err = cache.GetSession(t.Context(), session.TokenHash)
	require.ErrorIs(t, err, ErrNotFound)
}
