package invoices

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aquabill/aquabill/internal/platform/httpx"
	"github.com/aquabill/aquabill/internal/shared"
)

// IdempotencyKeyHeader carries the client supplied replay key on POST /api/invoices.
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyModule = "invoices.create"

// IdempotencyGuard rejects replayed request keys.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

type Handler struct {
	logger      *slog.Logger
	generator   *Generator
	statuses    *StatusManager
	service     *Service
	documents   *Documents
	idempotency IdempotencyGuard
	validator   *validator.Validate
}

// NewHandler wires the invoice endpoints. idempotency and documents may be nil.
func NewHandler(logger *slog.Logger, generator *Generator, statuses *StatusManager, service *Service, documents *Documents, idempotency IdempotencyGuard) *Handler {
	return &Handler{
		logger:      logger,
		generator:   generator,
		statuses:    statuses,
		service:     service,
		documents:   documents,
		idempotency: idempotency,
		validator:   validator.New(),
	}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Patch("/{id}/status", h.updateStatus)
	if h.documents != nil {
		r.Get("/{id}/document", h.document)
		r.Get("/{id}/pdf", h.pdf)
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInvoiceInput
	if err := httpx.DecodeJSON(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, idempotencyModule); err != nil {
			h.fail(w, "idempotency check failed", err)
			return
		}
	}

	invoice, err := h.generator.CreateInvoice(r.Context(), in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(r.Context(), key, idempotencyModule); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, "create invoice failed", err, slog.Int64("meter_reading_id", in.MeterReadingID))
		return
	}
	h.logger.Info("invoice generated",
		slog.Int64("id", invoice.ID),
		slog.Int64("customer_id", invoice.CustomerID),
		slog.String("amount_due", invoice.AmountDue.String()),
	)
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	q := r.URL.Query()
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer_id must be a positive integer")
			return
		}
		filter.CustomerID = id
	}
	filter.Status = Status(q.Get("status"))

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list invoices failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get invoice failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateStatusInput
	if err := httpx.DecodeJSON(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.statuses.UpdateStatus(r.Context(), id, in.Status)
	if err != nil {
		h.fail(w, "update invoice status failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	html, err := h.documents.HTML(r.Context(), id)
	if err != nil {
		h.fail(w, "render invoice document failed", err, slog.Int64("id", id))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.documents.PDF(r.Context(), id)
	if err != nil {
		if httpx.IsClientError(err) {
			httpx.RespondError(w, err)
			return
		}
		h.logger.Error("render invoice pdf failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "document renderer unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=invoice-"+strconv.FormatInt(id, 10)+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	if !httpx.IsClientError(err) {
		h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	}
	httpx.RespondError(w, err)
}

var _ IdempotencyGuard = (*shared.IdempotencyStore)(nil)
