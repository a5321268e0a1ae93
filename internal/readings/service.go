package readings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/aquabill/aquabill/internal/observability"
	"github.com/aquabill/aquabill/internal/shared"
	"github.com/aquabill/aquabill/internal/usage"
)

// Resolver stores meter readings with their derived usage.
type Resolver struct {
	repo    Repository
	metrics *observability.BillingMetrics
	logger  *slog.Logger
}

// NewResolver constructs a Resolver. metrics may be nil.
func NewResolver(repo Repository, metrics *observability.BillingMetrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, metrics: metrics, logger: logger}
}

// CreateReading stores a reading. The previous reading is the explicit value when
// supplied, otherwise the customer's latest stored reading, otherwise zero.
func (r *Resolver) CreateReading(ctx context.Context, in CreateReadingInput) (*MeterReading, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	current := shared.RoundQuantity(*in.CurrentReading)

	var created *MeterReading
	err := r.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		exists, err := repo.CustomerExists(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("customer %d: %w", in.CustomerID, shared.ErrNotFound)
		}

		previous, err := resolvePrevious(ctx, repo, in)
		if err != nil {
			return err
		}
		if usage.Clamped(current, previous) {
			r.metrics.UsageClamped()
			r.logger.Warn("meter reading below previous reading, usage clamped to zero",
				slog.Int64("customer_id", in.CustomerID),
				slog.String("current_reading", current.String()),
				slog.String("previous_reading", previous.String()),
			)
		}

		created, err = repo.Insert(ctx, MeterReading{
			CustomerID:      in.CustomerID,
			ReadingDate:     in.ReadingDate,
			CurrentReading:  current,
			PreviousReading: decimal.NewNullDecimal(previous),
			UsageCalculated: usage.Calculate(current, previous),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create meter reading: %w", err)
	}
	return created, nil
}

// ListByCustomer returns the customer's readings, newest first.
func (r *Resolver) ListByCustomer(ctx context.Context, customerID int64) ([]MeterReading, error) {
	return r.repo.ListByCustomer(ctx, customerID)
}

func resolvePrevious(ctx context.Context, repo Repository, in CreateReadingInput) (decimal.Decimal, error) {
	if in.PreviousReading != nil {
		return shared.RoundQuantity(*in.PreviousReading), nil
	}
	latest, err := repo.Latest(ctx, in.CustomerID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return decimal.Zero, nil
	case err != nil:
		return decimal.Zero, err
	}
	return latest.CurrentReading, nil
}

func validateInput(in CreateReadingInput) error {
	switch {
	case in.CustomerID <= 0:
		return fmt.Errorf("%w: customer_id must be positive", shared.ErrValidation)
	case in.ReadingDate.IsZero():
		return fmt.Errorf("%w: reading_date is required", shared.ErrValidation)
	case in.CurrentReading == nil:
		return fmt.Errorf("%w: current_reading is required", shared.ErrValidation)
	case in.CurrentReading.IsNegative():
		return fmt.Errorf("%w: current_reading must be non-negative, got %s", shared.ErrValidation, in.CurrentReading.String())
	case !shared.QuantityFits(*in.CurrentReading):
		return fmt.Errorf("%w: current_reading must be below 10000000000, got %s", shared.ErrValidation, in.CurrentReading.String())
	case in.PreviousReading != nil && in.PreviousReading.IsNegative():
		return fmt.Errorf("%w: previous_reading must be non-negative, got %s", shared.ErrValidation, in.PreviousReading.String())
	case in.PreviousReading != nil && !shared.QuantityFits(*in.PreviousReading):
		return fmt.Errorf("%w: previous_reading must be below 10000000000, got %s", shared.ErrValidation, in.PreviousReading.String())
	}
	return nil
}
