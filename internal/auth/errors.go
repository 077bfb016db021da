package auth

const (
	// ErrInvalidCredentials is returned when a username or password does not
	// match. Which of the two was wrong is deliberately not distinguished.
	ErrInvalidCredentials Error = "invalid credentials"
	// ErrUsernameTaken is returned when registering a name that is in use.
	ErrUsernameTaken Error = "username taken"
)

// Error codes attached to wrapped infrastructure failures.
const (
	CodeStoreFailure = "AUTH_STORE_FAILURE"
	CodeHashFailure  = "AUTH_HASH_FAILURE"
	CodeTokenFailure = "AUTH_TOKEN_FAILURE"
)

// Error is an error type returned by the auth package.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }
