// Package auth converts verified credentials into sessions and resolves
// sessions back into user identities.
//
// A request is Anonymous until [Authority.Login] succeeds, after which the
// client holds an opaque token naming an Authenticated [Session]. The session
// ends on [Authority.Logout] or when it expires; either way the token then
// resolves to nothing, exactly as if it had never been issued.
//
// Failures are reported with sentinel errors ([ErrInvalidCredentials],
// [ErrUsernameTaken]) when the caller is at fault, and with oops-coded errors
// wrapping the cause when a store or the hasher fails.
package auth
