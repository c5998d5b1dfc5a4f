package assignment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lostfound/lostfound/internal/platform/httpx"
	"github.com/lostfound/lostfound/internal/shared"
)

// Handler exposes AssignReceiver over HTTP.
type Handler struct {
	logger      *slog.Logger
	coordinator *Coordinator
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, coordinator *Coordinator) *Handler {
	return &Handler{logger: logger, coordinator: coordinator}
}

// MountRoutes registers routes under /interests. Authorization depends on
// the item kind and owner, so the coordinator decides it under the row lock.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/assign", h.assign)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	interestID, err := httpx.URLParamID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	res, err := h.coordinator.AssignReceiver(r.Context(), actor, interestID)
	if err != nil {
		if !shared.IsDomain(err) {
			h.logger.Error("assign receiver", slog.Any("error", err), slog.Int64("interest_id", interestID))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
