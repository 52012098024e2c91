package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type idempotencyRepository struct {
	db sqlx.ExtContext
}

func NewIdempotencyRepository(db sqlx.ExtContext) repository.IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) Insert(ctx context.Context, key *model.IdempotencyKey) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (
			key, request_hash, status, booking_id, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (key) DO NOTHING
	`
	key.CreatedAt = time.Now().UTC()
	key.UpdatedAt = key.CreatedAt

	result, err := r.db.ExecContext(ctx, query,
		key.Key,
		key.RequestHash,
		key.Status,
		key.BookingID,
		key.LockedUntil,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert idempotency key: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*model.IdempotencyKey, error) {
	query := `
		SELECT key, request_hash, status, booking_id, locked_until, created_at, updated_at
		FROM idempotency_keys
		WHERE key = $1
	`
	var k model.IdempotencyKey
	if err := sqlx.GetContext(ctx, r.db, &k, query, key); err != nil {
		return nil, dbError("get idempotency key", "idempotency key", err)
	}
	return &k, nil
}

func (r *idempotencyRepository) TakeOver(ctx context.Context, key string, now, lockedUntil time.Time) (bool, error) {
	query := `
		UPDATE idempotency_keys
		SET locked_until = $1, updated_at = $2
		WHERE key = $3 AND status = 'PROCESSING' AND locked_until < $2
	`
	result, err := r.db.ExecContext(ctx, query, lockedUntil, now, key)
	if err != nil {
		return false, fmt.Errorf("failed to take over idempotency key: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, bookingID uuid.UUID) error {
	query := `
		UPDATE idempotency_keys
		SET status = 'COMPLETED', booking_id = $1, updated_at = NOW()
		WHERE key = $2
	`
	result, err := r.db.ExecContext(ctx, query, bookingID, key)
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFound("idempotency key", nil)
	}
	return nil
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND status = 'PROCESSING'`, key)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM idempotency_keys
		WHERE (status = 'COMPLETED' AND updated_at < $1)
		OR (status = 'PROCESSING' AND locked_until < $1)
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency keys: %w", err)
	}
	return rowsAffected(result)
}
