package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquabill/aquabill/internal/billingconfig"
	"github.com/aquabill/aquabill/internal/customers"
	"github.com/aquabill/aquabill/internal/platform/db"
	"github.com/aquabill/aquabill/internal/readings"
	"github.com/aquabill/aquabill/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// Configs exposes the configuration repository bound to the same transaction.
	Configs() billingconfig.Repository
	Reading(ctx context.Context, id int64) (*readings.MeterReading, error)
	Customer(ctx context.Context, id int64) (*customers.Customer, error)
	Insert(ctx context.Context, invoice Invoice) (*Invoice, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Invoice, error)
	// PendingDueBefore returns pending invoices with a due date before asOf, oldest due first.
	PendingDueBefore(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)
}

const invoiceColumns = `id, customer_id, meter_reading_id, billing_period, total_usage, price_per_unit, amount_due, due_date, status, created_at, updated_at`

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Configs() billingconfig.Repository {
	return billingconfig.Bind(r.db)
}

func (r *repository) Reading(ctx context.Context, id int64) (*readings.MeterReading, error) {
	return readings.Bind(r.db).Get(ctx, id)
}

func (r *repository) Customer(ctx context.Context, id int64) (*customers.Customer, error) {
	return customers.Bind(r.db).Get(ctx, id)
}

func (r *repository) Insert(ctx context.Context, inv Invoice) (*Invoice, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO invoices (customer_id, meter_reading_id, billing_period, total_usage, price_per_unit, amount_due, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING `+invoiceColumns,
		inv.CustomerID,
		inv.MeterReadingID,
		inv.BillingPeriod,
		shared.RoundQuantity(inv.TotalUsage),
		shared.RoundPrice(inv.PricePerUnit),
		shared.RoundQuantity(inv.AmountDue),
		inv.DueDate,
		string(inv.Status),
	)
	created, err := scanInvoice(row)
	if db.IsForeignKeyViolation(err) {
		return nil, fmt.Errorf("customer %d or meter reading %d: %w", inv.CustomerID, inv.MeterReadingID, shared.ErrNotFound)
	}
	return created, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	return inv, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	var (
		where []string
		args  []any
	)
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return r.queryInvoices(ctx, query, args...)
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) (*Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `
		UPDATE invoices SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+invoiceColumns, id, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	return inv, err
}

func (r *repository) PendingDueBefore(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error) {
	return r.queryInvoices(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE status = 'pending' AND due_date < $1
		ORDER BY due_date, id
		LIMIT $2`, asOf, limit)
}

func (r *repository) queryInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inv)
	}
	return list, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv    Invoice
		status string
	)
	if err := row.Scan(
		&inv.ID, &inv.CustomerID, &inv.MeterReadingID, &inv.BillingPeriod,
		&inv.TotalUsage, &inv.PricePerUnit, &inv.AmountDue, &inv.DueDate,
		&status, &inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	inv.Status = Status(status)
	return &inv, nil
}
