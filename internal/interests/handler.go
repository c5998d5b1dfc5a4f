package interests

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/rbac"
	"github.com/lostfound/lostfound/internal/shared"
)

// Handler exposes the interest ledger over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountItemRoutes registers the routes nested under /items.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermInterestCreate)).Post("/{id}/interests", h.create)
	r.Get("/{id}/interests", h.listForItem)
}

// MountRoutes registers the routes under /interests.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/mine", h.listMine)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	interest, err := h.service.CreateInterest(r.Context(), itemID, actor.ID)
	if err != nil {
		h.fail(w, "create interest", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, interest)
}

func (h *Handler) listForItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	list, err := h.service.ListForItem(r.Context(), actor, itemID)
	if err != nil {
		h.fail(w, "list interests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"interests": list})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	list, err := h.service.ListMine(r.Context(), actor)
	if err != nil {
		h.fail(w, "list my interests", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"interests": list})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsDomain(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
