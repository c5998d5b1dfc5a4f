package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/lostfound/internal/assignment"
	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/internal/interests"
	"github.com/lostfound/lostfound/internal/items"
	"github.com/lostfound/lostfound/internal/observability"
	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/profileview"
	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/roles"
	"github.com/lostfound/lostfound/internal/users"
	"github.com/lostfound/lostfound/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator *auth.Authenticator
	Metrics       *observability.Metrics

	AuthHandler        *auth.Handler
	PermissionsHandler *rbac.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	ItemsHandler       *items.Handler
	InterestsHandler   *interests.Handler
	AssignmentHandler  *assignment.Handler
	ProfileViewHandler *profileview.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:        params.Logger,
		Config:        params.Config,
		Authenticator: params.Authenticator,
		Metrics:       params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePrincipal)
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		r.Route("/items", func(r chi.Router) {
			if params.ItemsHandler != nil {
				params.ItemsHandler.MountRoutes(r)
			}
			if params.InterestsHandler != nil {
				params.InterestsHandler.MountItemRoutes(r)
			}
		})
		r.Route("/interests", func(r chi.Router) {
			if params.InterestsHandler != nil {
				params.InterestsHandler.MountRoutes(r)
			}
			if params.AssignmentHandler != nil {
				params.AssignmentHandler.MountRoutes(r)
			}
		})
		if params.ProfileViewHandler != nil {
			r.Route("/profile-view-requests", params.ProfileViewHandler.MountRoutes)
		}
	})

	return r
}
