package billingconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquabill/aquabill/internal/platform/db"
	"github.com/aquabill/aquabill/internal/shared"
)

// Repository is the persistence port for the configuration singleton.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// Current returns the stored configuration or shared.ErrNotFound.
	Current(ctx context.Context) (*Config, error)
	// ResolveOrCreate returns the stored configuration, inserting defaults first when none exists.
	ResolveOrCreate(ctx context.Context, defaults Config) (*Config, error)
	Create(ctx context.Context, cfg Config) (*Config, error)
	Update(ctx context.Context, in UpdateInput) (*Config, error)
}

const configColumns = `id, price_per_unit, due_date_offset_days, created_at, updated_at`

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// Bind returns a Repository running on q, typically a transaction owned by
// another repository. WithTx on a bound repository joins that transaction.
func Bind(q db.DBTX) Repository {
	return &repository{db: q}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Current(ctx context.Context) (*Config, error) {
	cfg, err := scanConfig(r.db.QueryRow(ctx, `SELECT `+configColumns+` FROM billing_config WHERE id = $1`, SingletonID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("billing configuration: %w", shared.ErrNotFound)
	}
	return cfg, err
}

func (r *repository) ResolveOrCreate(ctx context.Context, defaults Config) (*Config, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO billing_config (id, price_per_unit, due_date_offset_days, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`,
		SingletonID, shared.RoundPrice(defaults.PricePerUnit), defaults.DueDateOffsetDays,
	)
	if err != nil {
		return nil, err
	}
	return r.Current(ctx)
}

func (r *repository) Create(ctx context.Context, cfg Config) (*Config, error) {
	return scanConfig(r.db.QueryRow(ctx, `
		INSERT INTO billing_config (id, price_per_unit, due_date_offset_days, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+configColumns,
		SingletonID, shared.RoundPrice(cfg.PricePerUnit), cfg.DueDateOffsetDays,
	))
}

func (r *repository) Update(ctx context.Context, in UpdateInput) (*Config, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{SingletonID}
	if in.PricePerUnit != nil {
		args = append(args, shared.RoundPrice(*in.PricePerUnit))
		sets = append(sets, fmt.Sprintf("price_per_unit = $%d", len(args)))
	}
	if in.DueDateOffsetDays != nil {
		args = append(args, *in.DueDateOffsetDays)
		sets = append(sets, fmt.Sprintf("due_date_offset_days = $%d", len(args)))
	}
	query := fmt.Sprintf(`UPDATE billing_config SET %s WHERE id = $1 RETURNING %s`, strings.Join(sets, ", "), configColumns)
	cfg, err := scanConfig(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("billing configuration: %w", shared.ErrNotFound)
	}
	return cfg, err
}

func scanConfig(row pgx.Row) (*Config, error) {
	var cfg Config
	if err := row.Scan(&cfg.ID, &cfg.PricePerUnit, &cfg.DueDateOffsetDays, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	return &cfg, nil
}
