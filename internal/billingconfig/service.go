package billingconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aquabill/aquabill/internal/platform/db"
	"github.com/aquabill/aquabill/internal/shared"
)

// Store resolves and updates the billing configuration.
type Store struct {
	repo   Repository
	cache  *Cache
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewStore builds a Store. cache and audit may be nil.
func NewStore(repo Repository, cache *Cache, audit shared.AuditRecorder, logger *slog.Logger) *Store {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, cache: cache, audit: audit, logger: logger}
}

// Get returns the configuration, creating the default record when none exists.
func (s *Store) Get(ctx context.Context) (*Config, error) {
	return s.cache.Fetch(ctx, func(ctx context.Context) (*Config, error) {
		var cfg *Config
		err := s.inTx(ctx, func(ctx context.Context, repo Repository) error {
			var err error
			cfg, err = repo.ResolveOrCreate(ctx, Defaults())
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("resolve billing configuration: %w", err)
		}
		return cfg, nil
	})
}

// Update applies the supplied fields. Without an existing record one is created
// from the defaults with the supplied fields applied on top.
func (s *Store) Update(ctx context.Context, in UpdateInput) (*Config, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	var (
		cfg     *Config
		changed bool
	)
	err := s.inTx(ctx, func(ctx context.Context, repo Repository) error {
		changed = false
		existing, err := repo.Current(ctx)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		switch {
		case existing == nil:
			cfg, err = repo.Create(ctx, in.Apply(Defaults()))
			changed = true
		case in.Empty():
			cfg = existing
		default:
			cfg, err = repo.Update(ctx, in)
			changed = true
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update billing configuration: %w", err)
	}

	if changed {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("billing config cache invalidate", slog.Any("error", err))
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "billing_config.update",
			Entity:   "billing_config",
			EntityID: strconv.Itoa(int(cfg.ID)),
			Meta: map[string]any{
				"price_per_unit":       cfg.PricePerUnit.String(),
				"due_date_offset_days": cfg.DueDateOffsetDays,
			},
		}); err != nil {
			s.logger.Warn("audit billing config update", slog.Any("error", err))
		}
	}
	return cfg, nil
}

// inTx runs fn in a transaction, retrying once when another writer created or
// changed the singleton row concurrently. The retry sees the committed row.
func (s *Store) inTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	err := s.repo.WithTx(ctx, fn)
	if err == nil || !(db.IsSerializationFailure(err) || db.IsUniqueViolation(err)) {
		return err
	}
	s.logger.Debug("billing config write raced, retrying", slog.Any("error", err))
	return s.repo.WithTx(ctx, fn)
}

func validateUpdate(in UpdateInput) error {
	if in.PricePerUnit != nil {
		switch {
		case !shared.RoundPrice(*in.PricePerUnit).IsPositive():
			return fmt.Errorf("%w: price_per_unit must be greater than 0, got %s", shared.ErrValidation, in.PricePerUnit.String())
		case !shared.PriceFits(*in.PricePerUnit):
			return fmt.Errorf("%w: price_per_unit must be below 1000000, got %s", shared.ErrValidation, in.PricePerUnit.String())
		}
	}
	if in.DueDateOffsetDays != nil {
		switch {
		case *in.DueDateOffsetDays <= 0:
			return fmt.Errorf("%w: due_date_offset_days must be a positive integer, got %d", shared.ErrValidation, *in.DueDateOffsetDays)
		case *in.DueDateOffsetDays > MaxDueDateOffsetDays:
			return fmt.Errorf("%w: due_date_offset_days must be at most %d, got %d", shared.ErrValidation, MaxDueDateOffsetDays, *in.DueDateOffsetDays)
		}
	}
	return nil
}
