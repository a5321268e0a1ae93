package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aquabill/aquabill/internal/observability"
	"github.com/aquabill/aquabill/internal/shared"
)

// StatusManager overwrites invoice status. No transition graph is enforced.
type StatusManager struct {
	repo    Repository
	audit   shared.AuditRecorder
	metrics *observability.BillingMetrics
	logger  *slog.Logger
}

// NewStatusManager builds a StatusManager. audit and metrics may be nil.
func NewStatusManager(repo Repository, audit shared.AuditRecorder, metrics *observability.BillingMetrics, logger *slog.Logger) *StatusManager {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusManager{repo: repo, audit: audit, metrics: metrics, logger: logger}
}

// UpdateStatus sets the invoice status and refreshes updated_at; no other column changes.
func (m *StatusManager) UpdateStatus(ctx context.Context, id int64, status Status) (*Invoice, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invoice id must be positive", shared.ErrValidation)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice status %q", shared.ErrValidation, status)
	}

	var updated *Invoice
	err := m.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		updated, err = repo.UpdateStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	m.recorded(ctx, updated)
	return updated, nil
}

// MarkOverdue moves pending invoices due before asOf to overdue, at most limit
// per call, and returns the invoices it changed. Each candidate is re-read in
// its own transaction so a concurrent payment is never overwritten.
func (m *StatusManager) MarkOverdue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error) {
	candidates, err := m.repo.PendingDueBefore(ctx, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue candidates: %w", err)
	}
	changed := make([]Invoice, 0, len(candidates))
	for _, candidate := range candidates {
		var updated *Invoice
		err := m.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			current, err := repo.Get(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if current.Status != StatusPending || !current.DueDate.Before(asOf) {
				return nil
			}
			updated, err = repo.UpdateStatus(ctx, current.ID, StatusOverdue)
			return err
		})
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("mark invoice %d overdue: %w", candidate.ID, err)
		}
		if updated != nil {
			m.recorded(ctx, updated)
			changed = append(changed, *updated)
		}
	}
	return changed, nil
}

func (m *StatusManager) recorded(ctx context.Context, inv *Invoice) {
	m.metrics.StatusChanged(string(inv.Status))
	if err := m.audit.Record(ctx, shared.AuditLog{
		Action:   "invoice.status",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     map[string]any{"status": string(inv.Status)},
	}); err != nil {
		m.logger.Warn("audit invoice status change", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
	}
}

// Service bundles read access to invoices.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices newest first, optionally filtered by customer and status.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown invoice status %q", shared.ErrValidation, filter.Status)
	}
	return s.repo.List(ctx, filter)
}
