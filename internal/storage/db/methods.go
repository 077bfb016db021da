package db

import "time"

// ExpiredAt reports whether the session is no longer valid at t.
func (s Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
