package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/stolasapp/gatekeep/internal/observability"
	"github.com/stolasapp/gatekeep/internal/sec"
	"github.com/stolasapp/gatekeep/internal/storage"
	"github.com/stolasapp/gatekeep/internal/storage/db"
)

// Client-facing messages.
const (
	MsgUsernameTaken      = "Username taken"
	MsgUsernameRequired   = "Username is required"
	MsgInvalidCredentials = "Invalid credentials"
	MsgPasswordTooShort   = "Password must be longer than 3 chars"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"
	MsgShallNotPass       = "You shall not pass!"
	MsgInvalidBody        = "Invalid request body"
)

// MinPasswordLength is the shortest password, in characters, the policy
// accepts.
const MinPasswordLength = 4

const credentialsKey = "credentials"

// Credentials are the username and password of a register or login request.
// They only live for the duration of the request.
type Credentials struct {
	Username string
	Password string
	// HasUsername and HasPassword report whether the field was present in
	// the body as a JSON string.
	HasUsername bool
	HasPassword bool
}

// Check is one step of the credential validation pipeline. Run returns nil to
// let the request continue, an *echo.HTTPError to deny it, or any other error
// if the check itself could not be evaluated.
type Check struct {
	Name string
	Run  func(ctx context.Context, creds Credentials) error
}

// UsernamePresent denies requests without a non-empty username.
func UsernamePresent() Check {
	return Check{
		Name: "username_present",
		Run: func(_ context.Context, creds Credentials) error {
			if !creds.HasUsername || creds.Username == "" {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, MsgUsernameRequired)
			}
			return nil
		},
	}
}

// UsernameIsFree denies requests whose username belongs to an existing user.
// It is advisory: the store's uniqueness constraint has the final say.
func UsernameIsFree(users storage.Users) Check {
	return Check{
		Name: "username_is_free",
		Run: func(ctx context.Context, creds Credentials) error {
			taken, err := usernameInUse(ctx, users, creds.Username)
			if err != nil {
				return err
			} else if taken {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, MsgUsernameTaken)
			}
			return nil
		},
	}
}

// UsernameExists denies requests whose username belongs to no user. Denials
// still pay for one password verification through hasher, so an unknown name
// answers no faster than a wrong password.
func UsernameExists(users storage.Users, hasher sec.PasswordHasher) Check {
	return Check{
		Name: "username_exists",
		Run: func(ctx context.Context, creds Credentials) error {
			found := false
			if creds.HasUsername {
				var err error
				if found, err = usernameInUse(ctx, users, creds.Username); err != nil {
					return err
				}
			}
			if !found {
				hasher.DummyVerify(ctx, creds.Password)
				return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidCredentials)
			}
			return nil
		},
	}
}

// PasswordMeetsPolicy denies requests whose password is missing, not a
// string, or shorter than [MinPasswordLength] characters.
func PasswordMeetsPolicy() Check {
	return Check{
		Name: "password_meets_policy",
		Run: func(_ context.Context, creds Credentials) error {
			if !creds.HasPassword || utf8.RuneCountInString(creds.Password) < MinPasswordLength {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, MsgPasswordTooShort)
			}
			return nil
		},
	}
}

// usernameInUse decides over the full set of users, once.
func usernameInUse(ctx context.Context, users storage.Users, name string) (bool, error) {
	all, err := users.ListUsers(ctx)
	if err != nil {
		return false, oops.Code("CHECK_STORE_FAILURE").
			With("operation", "list users").
			Wrap(err)
	}
	return slices.ContainsFunc(all, func(u db.User) bool { return u.Name == name }), nil
}

// validate parses the request credentials and runs checks in order. The first
// check to fail ends the request; later checks and the handler do not run.
func validate(metrics *observability.Metrics, checks ...Check) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			creds, err := bindCredentials(c)
			if err != nil {
				return err
			}
			for _, check := range checks {
				if err = check.Run(c.Request().Context(), creds); err != nil {
					var denial *echo.HTTPError
					if errors.As(err, &denial) {
						metrics.RecordDenial(check.Name)
					}
					return err
				}
			}
			return next(c)
		}
	}
}

// bindCredentials decodes the body once per request and caches the result on
// the echo context.
func bindCredentials(c echo.Context) (Credentials, error) {
	if creds, ok := c.Get(credentialsKey).(Credentials); ok {
		return creds, nil
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil {
		return Credentials{}, echo.NewHTTPError(http.StatusUnprocessableEntity, MsgInvalidBody).SetInternal(err)
	}

	var creds Credentials
	creds.Username, creds.HasUsername = stringField(fields, "username")
	creds.Password, creds.HasPassword = stringField(fields, "password")
	c.Set(credentialsKey, creds)
	return creds, nil
}

// stringField reports false for absent, null and non-string fields.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return "", false
	}
	return *value, true
}
