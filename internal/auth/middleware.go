package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/shared"
)

// PrincipalSource loads the authorization identity of a user.
type PrincipalSource interface {
	Principal(ctx context.Context, id int64) (shared.Principal, error)
}

// Authenticator resolves bearer tokens into request principals.
type Authenticator struct {
	Service    *Service
	Principals PrincipalSource
	Logger     *slog.Logger
}

type claimsContextKey struct{}

// ClaimsFromContext returns the verified token claims of the request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return c, ok
}

// Middleware attaches the principal when a valid bearer token is present.
// Requests without a token pass through anonymously; invalid tokens get 401.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		claims, err := a.Service.Parse(ctx, raw)
		if err != nil {
			a.reject(w, err)
			return
		}
		userID, _ := claims.UserID()
		p, err := a.Principals.Principal(ctx, userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				err = ErrInvalidToken
			}
			a.reject(w, err)
			return
		}
		ctx = shared.ContextWithPrincipal(ctx, p)
		ctx = context.WithValue(ctx, claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a Authenticator) reject(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidToken) {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if a.Logger != nil {
		a.Logger.Error("authenticate request", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// RequirePrincipal rejects anonymous requests.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.PrincipalFromContext(r.Context()); !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
