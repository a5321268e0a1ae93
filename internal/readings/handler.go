package readings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquabill/aquabill/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, validator: validator.New()}
}

// MountRoutes registers POST /api/readings.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateReadingInput
	if err := httpx.DecodeJSON(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	reading, err := h.resolver.CreateReading(r.Context(), in)
	if err != nil {
		if !httpx.IsClientError(err) {
			h.logger.Error("create meter reading failed", slog.Any("error", err), slog.Int64("customer_id", in.CustomerID))
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("meter reading recorded", slog.Int64("id", reading.ID), slog.Int64("customer_id", reading.CustomerID))
	httpx.JSON(w, http.StatusCreated, reading)
}

// ListByCustomer serves GET /api/customers/{id}/readings.
func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	readings, err := h.resolver.ListByCustomer(r.Context(), id)
	if err != nil {
		h.logger.Error("list meter readings failed", slog.Any("error", err), slog.Int64("customer_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, readings)
}
