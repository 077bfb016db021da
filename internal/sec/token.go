package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// TokenBytes is the amount of entropy in a session token.
const TokenBytes = 32

// NewSessionToken creates a random session token and its digest. The token is
// handed to the client; only the digest is stored.
func NewSessionToken() (token, digest string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, DigestToken(token), nil
}

// DigestToken returns the hex-encoded SHA-256 of a session token. Lookups by
// digest are exact matches, so no constant-time comparison is needed.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
