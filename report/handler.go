package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aquabill/aquabill/internal/platform/httpx"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Handler reports whether the PDF renderer is reachable.
type Handler struct {
	renderer pinger
	logger   *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{renderer: client, logger: logger}
}

// MountRoutes registers GET /report/ping.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Ping(r.Context()); err != nil {
		h.logger.Warn("pdf renderer unreachable", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Renderer Unavailable", "the PDF renderer did not answer its health check")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
