package httpx

import (
	"context"

	domainauth "github.com/coursekit/admin-api/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext extracts the session placed by RequireAuth,
// or nil when the request was not authenticated.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	session, ok := ctx.Value(sessionKey{}).(*domainauth.Session)
	if !ok {
		return nil
	}
	return session
}

// CallerID returns the authenticated user id from the request context,
// or nil when no session is present. Handlers use it to stamp
// last_modified_by on mutations.
func CallerID(ctx context.Context) *string {
	session := GetSessionFromContext(ctx)
	if session == nil {
		return nil
	}
	id := session.UserID
	return &id
}
