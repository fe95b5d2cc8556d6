package auth

import (
	"context"

	"github.com/keyport/keyport/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the context key for storing the Session.
	sessionContextKey contextKey = "session"
)

// ContextWithSession adds the session to the context.
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext retrieves the session from the context.
// Returns nil if not present.
func SessionFromContext(ctx context.Context) *model.Session {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok {
		return nil
	}
	return session
}

// UserFromContext is a convenience function to get the signed-in user.
// Returns nil if not authenticated.
func UserFromContext(ctx context.Context) *model.User {
	session := SessionFromContext(ctx)
	if session == nil {
		return nil
	}
	return &session.User
}
