package sec

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHash(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(bcrypt.MinCost, 2)

	t.Run("produces bcrypt hash", func(t *testing.T) {
		t.Parallel()
		hash, err := hasher.Hash(t.Context(), "mypassword")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))
		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)
	})

	t.Run("same password produces different hashes", func(t *testing.T) {
		t.Parallel()
		hash1, err := hasher.Hash(t.Context(), "samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash(t.Context(), "samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		t.Parallel()
		_, err := hasher.Hash(t.Context(), "")
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects password over 72 bytes", func(t *testing.T) {
		t.Parallel()
		_, err := hasher.Hash(t.Context(), strings.Repeat("a", 73))
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		blocked := NewHasher(bcrypt.MinCost, 1)
		require.NoError(t, blocked.slots.Acquire(t.Context(), 1))
		defer blocked.slots.Release(1)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := blocked.Hash(ctx, "password")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestVerify(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(bcrypt.MinCost, 2)
	password := "correctpassword"
	hash, err := hasher.Hash(t.Context(), password)
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		t.Parallel()
		ok, err := hasher.Verify(t.Context(), password, hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password", func(t *testing.T) {
		t.Parallel()
		ok, err := hasher.Verify(t.Context(), "wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty password", func(t *testing.T) {
		t.Parallel()
		ok, err := hasher.Verify(t.Context(), "", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed hash", func(t *testing.T) {
		t.Parallel()
		ok, err := hasher.Verify(t.Context(), password, "not-a-hash")
		require.ErrorIs(t, err, ErrCorruptHash)
		assert.False(t, ok)
	})

	t.Run("empty hash", func(t *testing.T) {
		t.Parallel()
		_, err := hasher.Verify(t.Context(), password, "")
		require.ErrorIs(t, err, ErrCorruptHash)
	})
}

func TestVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(bcrypt.MinCost, 4)
	passwords := []string{"1234", "hunter22", "correct horse battery staple", "pässwörd", " spaced "}

	var wg sync.WaitGroup
	for _, password := range passwords {
		wg.Go(func() {
			hash, err := hasher.Hash(t.Context(), password)
			if !assert.NoError(t, err) {
				return
			}
			ok, err := hasher.Verify(t.Context(), password, hash)
			assert.NoError(t, err)
			assert.True(t, ok, password)

			ok, err = hasher.Verify(t.Context(), password+"x", hash)
			assert.NoError(t, err)
			assert.False(t, ok, password)
		})
	}
	wg.Wait()
}

func TestDummyVerify(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(bcrypt.MinCost, 1)
	assert.NotPanics(t, func() {
		hasher.DummyVerify(t.Context(), "anything")
		hasher.DummyVerify(t.Context(), "")
	})
	assert.NotEmpty(t, hasher.dummy())
}

func TestSessionToken(t *testing.T) {
	t.Parallel()

	token, digest, err := NewSessionToken()
	require.NoError(t, err)
	assert.Len(t, token, 2*TokenBytes)
	assert.Equal(t, DigestToken(token), digest)
	assert.NotEqual(t, token, digest)

	other, _, err := NewSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
