package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/gatekeep/internal/auth"
	"github.com/stolasapp/gatekeep/internal/observability"
)

// Restricted admits authenticated sessions and denies everything else.
func Restricted(session *auth.Session) error {
	if auth.IsAuthenticated(session) {
		return nil
	}
	return echo.NewHTTPError(http.StatusUnauthorized, MsgShallNotPass)
}

// restricted gates a route on the session bound by [loadSession].
func restricted(metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Restricted(auth.SessionFromContext(c.Request().Context())); err != nil {
				metrics.RecordDenial("restricted")
				return err
			}
			return next(c)
		}
	}
}
