package rbac

import (
	"log/slog"
	"net/http"

	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current principal holds at least one of perms.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if m.check(w, r, "rbac require any", normalized...) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAll ensures the current principal holds every one of perms.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, perm := range normalized {
				if !m.check(w, r, "rbac require all", perm) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) check(w http.ResponseWriter, r *http.Request, op string, required ...string) bool {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return false
	}
	if err := m.Service.Authorize(r.Context(), principal, required...); err != nil {
		if !shared.IsDomain(err) && m.Logger != nil {
			m.Logger.Error(op, slog.Any("error", err), slog.Int64("user_id", principal.ID))
		}
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func normalizePermissions(perms []string) []string {
	if len(perms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, perm := range perms {
		p := Normalize(perm)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
