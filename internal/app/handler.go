package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/gatekeep/internal/auth"
	"github.com/stolasapp/gatekeep/internal/observability"
	"github.com/stolasapp/gatekeep/internal/sec"
	"github.com/stolasapp/gatekeep/internal/storage"
)

type handler struct {
	authority *auth.Authority
	users     storage.Users
	hasher    sec.PasswordHasher
	metrics   *observability.Metrics
	cookies   sessionCookies
}

func (h handler) register(e *echo.Echo) {
	api := e.Group("/api")

	authn := api.Group("/auth")
	authn.POST("/register", h.registerUser, validate(h.metrics,
		UsernamePresent(),
		UsernameIsFree(h.users),
		PasswordMeetsPolicy(),
	))
	authn.POST("/login", h.login, validate(h.metrics,
		UsernameExists(h.users, h.hasher),
	))
	authn.GET("/logout", h.logout)

	api.GET("/users", h.listUsers,
		loadSession(h.authority, h.cookies),
		restricted(h.metrics),
	)
}

func (h handler) registerUser(c echo.Context) error {
	creds, err := bindCredentials(c)
	if err != nil {
		return err
	}

	identity, err := h.authority.Register(c.Request().Context(), creds.Username, creds.Password)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		h.metrics.RecordRegistration(observability.OutcomeRejected)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, MsgUsernameTaken)
	case errors.Is(err, sec.ErrInvalidInput):
		h.metrics.RecordRegistration(observability.OutcomeRejected)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, MsgPasswordTooLong)
	case err != nil:
		h.metrics.RecordRegistration(observability.OutcomeError)
		return err
	}

	h.metrics.RecordRegistration(observability.OutcomeSuccess)
	return c.JSON(http.StatusOK, identity)
}

func (h handler) login(c echo.Context) error {
	creds, err := bindCredentials(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	session, err := h.authority.Login(ctx, creds.Username, creds.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.metrics.RecordLogin(observability.OutcomeRejected)
		return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidCredentials)
	case err != nil:
		h.metrics.RecordLogin(observability.OutcomeError)
		return err
	}

	// a fresh login replaces whatever session the client held
	if previous := h.cookies.token(c); previous != "" {
		h.authority.Logout(ctx, previous)
	}
	h.cookies.set(c, session)
	h.metrics.RecordLogin(observability.OutcomeSuccess)
	return c.JSON(http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Welcome %s!", session.Username),
	})
}

func (h handler) logout(c echo.Context) error {
	token := h.cookies.token(c)
	outcome := h.authority.Logout(c.Request().Context(), token)
	if token != "" {
		h.cookies.clear(c)
	}
	h.metrics.RecordLogout(outcome.String())
	return c.JSON(http.StatusOK, messageResponse{Message: outcome.String()})
}

func (h handler) listUsers(c echo.Context) error {
	users, err := h.users.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	identities := make([]auth.Identity, 0, len(users))
	for _, user := range users {
		identities = append(identities, auth.Identity{ID: user.ID, Username: user.Name})
	}
	return c.JSON(http.StatusOK, identities)
}
