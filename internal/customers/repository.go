package customers

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

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Create(ctx context.Context, customer Customer) (*Customer, error)
	Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error)
	Delete(ctx context.Context, id int64) error
}

const customerColumns = `id, name, address, whatsapp_number, created_at, updated_at`

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

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (r *repository) Create(ctx context.Context, customer Customer) (*Customer, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO customers (name, address, whatsapp_number, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING `+customerColumns,
		customer.Name, customer.Address, customer.WhatsAppNumber,
	)
	return scanCustomer(row)
}

func (r *repository) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	sets := []string{"updated_at = NOW()"}
	var args []any
	argPos := 1

	if req.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *req.Name)
		argPos++
	}
	if req.Address != nil {
		sets = append(sets, fmt.Sprintf("address = $%d", argPos))
		args = append(args, *req.Address)
		argPos++
	}
	if req.WhatsAppNumber != nil {
		sets = append(sets, fmt.Sprintf("whatsapp_number = $%d", argPos))
		args = append(args, *req.WhatsAppNumber)
		argPos++
	}

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), argPos, customerColumns)
	args = append(args, id)

	c, err := scanCustomer(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return c, err
}

// Delete removes the customer; meter readings and invoices go with it via ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Address, &c.WhatsAppNumber, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
