package profileview

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/shared"
)

// Handler exposes the profile-view workflow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers the routes under /profile-view-requests.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermProfileViewRequest)).Post("/", h.create)
	r.Get("/incoming", h.incoming)
	r.Get("/outgoing", h.outgoing)
	r.Post("/{id}/approve", h.decide(h.service.Approve))
	r.Post("/{id}/deny", h.decide(h.service.Deny))
	r.Post("/{id}/revoke", h.decide(h.service.Revoke))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req CreateRequest
	if !httpx.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}
	created, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, "create profile view request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) incoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListIncoming)
}

func (h *Handler) outgoing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.service.ListOutgoing)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context, shared.Principal) ([]Request, error)) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	list, err := fn(r.Context(), actor)
	if err != nil {
		h.fail(w, "list profile view requests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": list})
}

func (h *Handler) decide(fn func(context.Context, shared.Principal, int64) (Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.URLParamID(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		actor, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		updated, err := fn(r.Context(), actor, id)
		if err != nil {
			h.fail(w, "decide profile view request", err)
			return
		}
		httpx.JSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsDomain(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
