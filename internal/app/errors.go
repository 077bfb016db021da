package app

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
)

type messageResponse struct {
	Message string `json:"message"`
}

// errorHandler renders every error as a {"message": ...} body. Errors that
// are not an *echo.HTTPError are internal failures: they are logged and the
// client only sees a generic 500.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if msg, ok := httpErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			logError(c, logger, err)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, messageResponse{Message: message})
		}
		if writeErr != nil {
			logger.WarnContext(c.Request().Context(), "failed to write error response", slog.Any("error", writeErr))
		}
	}
}

func logError(c echo.Context, logger *slog.Logger, err error) {
	attrs := []any{
		slog.String("route", c.Path()),
		slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		slog.Any("error", err),
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, slog.Any("code", code))
		}
		for k, v := range oopsErr.Context() {
			attrs = append(attrs, slog.Any(k, v))
		}
	}
	logger.ErrorContext(c.Request().Context(), "request failed", attrs...)
}
