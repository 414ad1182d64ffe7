package auth

import (
	"context"

	"github.com/atelierhub/portal/internal/rbac"
)

// Identity is the authenticated caller for the current request, resolved
// from the session cookie by Middleware.
type Identity struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	OrgID string    `json:"orgId"`
	Role  rbac.Role `json:"role"`
}

type identityKey struct{}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the request identity, or nil when the request
// is unauthenticated. An absent identity is a valid state, not an error;
// guards treat it as "no role".
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// RoleFromContext returns the acting role, or "" when unauthenticated.
func RoleFromContext(ctx context.Context) rbac.Role {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Role
	}
	return ""
}
