package shared

import "context"

// Principal describes the authenticated actor of a request.
type Principal struct {
	ID       int64
	RoleID   *int64
	IsActive bool
}

// HasRole reports whether the principal is bound to a role.
func (p Principal) HasRole() bool {
	return p.RoleID != nil
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
