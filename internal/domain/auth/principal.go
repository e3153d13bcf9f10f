// Package auth models the caller identity resolved by the external
// authentication service: a user id plus a role flag.
package auth

import "context"

// Role is the authorization level of a principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is an authenticated caller.
type Principal struct {
	UserID string
	Role   Role
	// APIKeyID is set when the principal was resolved from an API key.
	APIKeyID string
}

// IsAdmin reports whether the principal may use back-office operations.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

type principalKey struct{}

type sessionKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, or nil for anonymous
// callers.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// WithSession stores the anonymous cart session id in ctx.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the anonymous cart session id, or "".
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// UserIDFrom returns the authenticated user id, or "".
func UserIDFrom(ctx context.Context) string {
	if p := PrincipalFrom(ctx); p != nil {
		return p.UserID
	}
	return ""
}
