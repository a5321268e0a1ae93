package billingconfig

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquabill/aquabill/internal/platform/httpx"
)

// Handler exposes the configuration over HTTP.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers configuration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Put("/", h.update)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Error("get billing config", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(r, nil, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	cfg, err := h.store.Update(r.Context(), in)
	if err != nil {
		if !httpx.IsClientError(err) {
			h.logger.Error("update billing config", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}
