package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquabill/aquabill/internal/platform/db"
)

// ErrIdempotencyConflict is returned when a key was already claimed for a module.
var ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", ErrDuplicate)

// IdempotencyStore claims request keys in idempotency_keys, scoped per module.
type IdempotencyStore struct {
	db  db.DBTX
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: pool, now: time.Now}
}

func claimArgs(key, module string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: idempotency key required", ErrValidation)
	case module == "":
		return errors.New("idempotency module required")
	}
	return nil
}

// CheckAndInsert claims key for module. A second claim yields ErrIdempotencyConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency store not initialised")
	}
	if err := claimArgs(key, module); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3) ON CONFLICT (key, module) DO NOTHING`,
		key, module, s.now())
	if err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a claimed key so the request can be retried.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := claimArgs(key, module); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`, key, module)
	return err
}

// Cleanup drops keys claimed before now-olderThan and returns how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
