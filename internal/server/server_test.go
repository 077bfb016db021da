package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	grp, ctx := errgroup.WithContext(ctx)

	var written time.Duration
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	addr, err := Start(ctx, grp, slog.New(slog.DiscardHandler), "test", "127.0.0.1:0", handler,
		func(srv *http.Server) { written = srv.WriteTimeout },
		WithWriteTimeout(time.Minute),
	)
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	assert.Equal(t, WriteTimeout, written)

	resp, err := http.Get("http://" + addr + "/") //nolint:noctx // test
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))

	cancel()
	require.NoError(t, grp.Wait())
}

func TestStart_Disabled(t *testing.T) {
	t.Parallel()

	var grp errgroup.Group
	addr, err := Start(t.Context(), &grp, slog.New(slog.DiscardHandler), "test", "", http.NotFoundHandler())
	require.NoError(t, err)
	assert.Empty(t, addr)
	require.NoError(t, grp.Wait())
}
