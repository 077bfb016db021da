// Package app contains the HTTP front-end of the gate.
package app

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stolasapp/gatekeep/internal/auth"
	"github.com/stolasapp/gatekeep/internal/config"
	"github.com/stolasapp/gatekeep/internal/observability"
	"github.com/stolasapp/gatekeep/internal/sec"
	"github.com/stolasapp/gatekeep/internal/storage"
)

// maxBodySize bounds request bodies; credentials are tiny.
const maxBodySize = "16K"

// New creates the web front-end server.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	authority *auth.Authority,
	users storage.Users,
	hasher sec.PasswordHasher,
	metrics *observability.Metrics,
) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.Debug = cfg.DevMode
	srv.HTTPErrorHandler = errorHandler(logger)

	srv.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Secure(),
		middleware.BodyLimit(maxBodySize),
		logRequests(logger),
	)

	handler{
		authority: authority,
		users:     users,
		hasher:    hasher,
		metrics:   metrics,
		cookies: sessionCookies{
			name:   cfg.Session.CookieName,
			maxAge: cfg.Session.MaxAge,
			secure: cfg.SecureCookie(),
		},
	}.register(srv)
	return srv
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			// already written by c.Error
			return nil
		}
	}
}
