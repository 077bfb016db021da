// Package sec provides password and session token primitives.
//
// # Passwords
//
// Passwords are hashed with bcrypt at a configurable cost. Hash computation is
// CPU-bound, so [Hasher] bounds the number of concurrent computations with a
// weighted semaphore; waiting callers honor their context.
//
// # Session tokens
//
// Session tokens are 32 random bytes, hex-encoded, and sent to the client in a
// cookie. The server stores only the SHA-256 digest of a token, so a leaked
// session table cannot be replayed.
//
// # Components
//
//   - [PasswordHasher], [Hasher]: bcrypt hashing and verification
//   - [NewSessionToken], [DigestToken]: session token generation and digests
package sec
