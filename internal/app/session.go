package app

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/gatekeep/internal/auth"
)

type sessionCookies struct {
	name   string
	maxAge time.Duration
	secure bool
}

// token returns the session token presented by the client, if any.
func (s sessionCookies) token(c echo.Context) string {
	cookie, err := c.Cookie(s.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s sessionCookies) set(c echo.Context, session *auth.Session) {
	c.SetCookie(&http.Cookie{
		Name:     s.name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(s.maxAge.Seconds()),
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s sessionCookies) clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.name,
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadSession resolves the session cookie and binds the session, if live, to
// the request context. Stale cookies are cleared.
func loadSession(authority *auth.Authority, cookies sessionCookies) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := cookies.token(c)
			if token == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			session, err := authority.Lookup(ctx, token)
			if err != nil {
				return err
			} else if session == nil {
				cookies.clear(c)
				return next(c)
			}

			c.SetRequest(c.Request().WithContext(auth.WithSession(ctx, session)))
			return next(c)
		}
	}
}
