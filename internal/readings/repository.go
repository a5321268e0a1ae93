package readings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquabill/aquabill/internal/platform/db"
	"github.com/aquabill/aquabill/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
	// Latest returns the customer's most recent reading by reading date, the
	// highest id winning ties, or shared.ErrNotFound when there is none.
	Latest(ctx context.Context, customerID int64) (*MeterReading, error)
	Insert(ctx context.Context, reading MeterReading) (*MeterReading, error)
	Get(ctx context.Context, id int64) (*MeterReading, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]MeterReading, error)
}

const readingColumns = `id, customer_id, reading_date, current_reading, previous_reading, usage_calculated, created_at, updated_at`

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// Bind returns a Repository running on an already open transaction.
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

func (r *repository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&exists)
	return exists, err
}

func (r *repository) Latest(ctx context.Context, customerID int64) (*MeterReading, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+readingColumns+`
		FROM meter_readings
		WHERE customer_id = $1
		ORDER BY reading_date DESC, id DESC
		LIMIT 1`, customerID)
	m, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("latest reading for customer %d: %w", customerID, shared.ErrNotFound)
	}
	return m, err
}

func (r *repository) Insert(ctx context.Context, reading MeterReading) (*MeterReading, error) {
	var previous any
	if reading.PreviousReading.Valid {
		previous = shared.RoundQuantity(reading.PreviousReading.Decimal)
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO meter_readings (customer_id, reading_date, current_reading, previous_reading, usage_calculated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+readingColumns,
		reading.CustomerID,
		reading.ReadingDate,
		shared.RoundQuantity(reading.CurrentReading),
		previous,
		shared.RoundQuantity(reading.UsageCalculated),
	)
	m, err := scanReading(row)
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("customer %d: %w", reading.CustomerID, shared.ErrNotFound)
	}
	return m, err
}

func (r *repository) Get(ctx context.Context, id int64) (*MeterReading, error) {
	m, err := scanReading(r.db.QueryRow(ctx, `SELECT `+readingColumns+` FROM meter_readings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("meter reading %d: %w", id, shared.ErrNotFound)
	}
	return m, err
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int64) ([]MeterReading, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+readingColumns+`
		FROM meter_readings
		WHERE customer_id = $1
		ORDER BY reading_date DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []MeterReading{}
	for rows.Next() {
		m, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *m)
	}
	return readings, rows.Err()
}

func scanReading(row pgx.Row) (*MeterReading, error) {
	var m MeterReading
	if err := row.Scan(&m.ID, &m.CustomerID, &m.ReadingDate, &m.CurrentReading, &m.PreviousReading, &m.UsageCalculated, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
