package auth

import (
	"context"

	"connectrpc.com/authn"
)

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *Session) context.Context {
	return authn.SetInfo(ctx, session)
}

// SessionFromContext returns the session attached by [WithSession], or nil if
// the request is anonymous.
func SessionFromContext(ctx context.Context) *Session {
	if session, ok := authn.GetInfo(ctx).(*Session); ok {
		return session
	}
	return nil
}
