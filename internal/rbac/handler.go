package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/shared"
)

// Handler exposes the permission catalog over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPermissionsView, shared.PermPermissionsEdit))
		r.Get("/", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPermissionsEdit))
		r.Post("/", h.createPermission)
		r.Post("/implications", h.addImplication)
		r.Delete("/implications", h.removeImplication)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.DescribeCatalog(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if !httpx.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	perm, err := h.service.CreatePermission(r.Context(), actor, req)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) addImplication(w http.ResponseWriter, r *http.Request) {
	var req ImplicationRequest
	if !httpx.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.AddImplication(r.Context(), actor, req); err != nil {
		h.fail(w, "add implication", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeImplication(w http.ResponseWriter, r *http.Request) {
	var req ImplicationRequest
	if !httpx.DecodeAndValidate(w, r, h.validate, &req) {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.RemoveImplication(r.Context(), actor, req); err != nil {
		h.fail(w, "remove implication", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsDomain(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
