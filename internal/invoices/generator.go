package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aquabill/aquabill/internal/observability"
	"github.com/aquabill/aquabill/internal/shared"
)

// Notifier is told about invoices after they are committed.
type Notifier interface {
	InvoiceCreated(ctx context.Context, invoice Invoice) error
}

// maxDueYear is the last year a due date can be encoded as RFC 3339.
const maxDueYear = 9999

// Generator derives invoices from meter readings and the active configuration.
type Generator struct {
	repo     Repository
	notifier Notifier
	metrics  *observability.BillingMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewGenerator constructs a Generator. notifier and metrics may be nil.
func NewGenerator(repo Repository, notifier Notifier, metrics *observability.BillingMetrics, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{repo: repo, notifier: notifier, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock replaces the time source used for due dates.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// CreateInvoice prices the reading's usage with the current configuration and
// stores a pending invoice due offset days from now. The configuration is read
// as-is; a missing one is reported as shared.ErrConfigurationMissing.
func (g *Generator) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	in.BillingPeriod = strings.TrimSpace(in.BillingPeriod)
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	var created *Invoice
	err := g.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		reading, err := repo.Reading(ctx, in.MeterReadingID)
		if err != nil {
			return err
		}
		if reading.CustomerID != in.CustomerID {
			return fmt.Errorf("%w: meter reading %d belongs to customer %d, not %d",
				shared.ErrValidation, reading.ID, reading.CustomerID, in.CustomerID)
		}

		cfg, err := repo.Configs().Current(ctx)
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("generate invoice for meter reading %d: %w", in.MeterReadingID, shared.ErrConfigurationMissing)
		}
		if err != nil {
			return err
		}

		amount := reading.UsageCalculated.Mul(cfg.PricePerUnit)
		if !shared.QuantityFits(amount) {
			return fmt.Errorf("%w: amount_due %s for meter reading %d exceeds 10 integer digits",
				shared.ErrValidation, shared.RoundQuantity(amount).String(), reading.ID)
		}
		due := g.now().AddDate(0, 0, cfg.DueDateOffsetDays)
		if due.Year() > maxDueYear {
			return fmt.Errorf("%w: due_date_offset_days %d puts the due date past year %d",
				shared.ErrValidation, cfg.DueDateOffsetDays, maxDueYear)
		}

		created, err = repo.Insert(ctx, Invoice{
			CustomerID:     in.CustomerID,
			MeterReadingID: reading.ID,
			BillingPeriod:  in.BillingPeriod,
			TotalUsage:     reading.UsageCalculated,
			PricePerUnit:   cfg.PricePerUnit,
			AmountDue:      shared.RoundQuantity(amount),
			DueDate:        due,
			Status:         StatusPending,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	g.metrics.InvoiceGenerated()
	if g.notifier != nil {
		if err := g.notifier.InvoiceCreated(ctx, *created); err != nil {
			g.logger.Warn("invoice notice not scheduled", slog.Int64("invoice_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

func validateCreate(in CreateInvoiceInput) error {
	switch {
	case in.CustomerID <= 0:
		return fmt.Errorf("%w: customer_id must be positive", shared.ErrValidation)
	case in.MeterReadingID <= 0:
		return fmt.Errorf("%w: meter_reading_id must be positive", shared.ErrValidation)
	case in.BillingPeriod == "":
		return fmt.Errorf("%w: billing_period is required", shared.ErrValidation)
	}
	return nil
}
