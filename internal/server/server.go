// Package server runs the HTTP listeners of the gate.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server timeouts.
const (
	ReadHeaderTimeout = 1 * time.Second
	ReadTimeout       = 5 * time.Second
	WriteTimeout      = 10 * time.Second
	ShutdownTimeout   = 10 * time.Second
)

// Option customizes the [http.Server] built by [Start].
type Option func(*http.Server)

// WithWriteTimeout overrides [WriteTimeout]. Password hashing happens inside
// the write window, so slow bcrypt costs may need a longer one.
func WithWriteTimeout(d time.Duration) Option {
	return func(srv *http.Server) { srv.WriteTimeout = d }
}

// Listen creates a TCP listener on the given address.
// Use "127.0.0.1:0" for a random available port.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// Start listens on addr and serves handler in grp until ctx is canceled. An
// empty addr disables the listener. The bound address is returned.
func Start(
	ctx context.Context,
	grp *errgroup.Group,
	logger *slog.Logger,
	name, addr string,
	handler http.Handler,
	opts ...Option,
) (string, error) {
	if addr == "" {
		logger.DebugContext(ctx, "server disabled", slog.String("server", name))
		return "", nil
	}

	listener, err := Listen(ctx, addr)
	if err != nil {
		return "", err
	}

	srv := &http.Server{ //nolint:gosec // Serve() sets timeouts
		Handler:  handler,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	Serve(ctx, grp, srv, listener, ShutdownTimeout, opts...)

	bound := listener.Addr().String()
	logger.InfoContext(ctx,
		"starting "+name+" server...",
		slog.String("address", bound),
	)
	return bound, nil
}

// Serve starts an HTTP server on the given listener and registers graceful
// shutdown when the context is canceled. The server is configured with
// standard timeouts before opts are applied.
func Serve(
	ctx context.Context,
	grp *errgroup.Group,
	srv *http.Server,
	listener net.Listener,
	shutdownTimeout time.Duration,
	opts ...Option,
) {
	srv.ReadHeaderTimeout = ReadHeaderTimeout
	srv.ReadTimeout = ReadTimeout
	srv.WriteTimeout = WriteTimeout
	for _, opt := range opts {
		opt(srv)
	}

	grp.Go(func() error {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
