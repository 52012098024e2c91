package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

const uniqueViolation = "23505"

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Store wires every repository to one database handle.
type Store struct {
	BaseRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{NewBaseRepository(db)}
}

func (s *Store) Bookings() repository.BookingRepository {
	return NewBookingRepository(s.db)
}

func (s *Store) Schedules() repository.ScheduleRepository {
	return NewScheduleRepository(s.db)
}

func (s *Store) Transactions() repository.TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *Store) Idempotency() repository.IdempotencyRepository {
	return NewIdempotencyRepository(s.db)
}

func (s *Store) Outbox() repository.OutboxRepository {
	return NewOutboxRepository(s.db)
}

func (s *Store) Notifications() repository.NotificationRepository {
	return NewNotificationRepository(s.db)
}

func (s *Store) Directory() repository.DirectoryRepository {
	return NewDirectoryRepository(s.db)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, txRepositories{tx: tx})
	})
}

type txRepositories struct {
	tx *sqlx.Tx
}

func (t txRepositories) Bookings() repository.BookingRepository {
	return NewBookingRepository(t.tx)
}

func (t txRepositories) Schedules() repository.ScheduleRepository {
	return NewScheduleRepository(t.tx)
}

func (t txRepositories) Transactions() repository.TransactionRepository {
	return NewTransactionRepository(t.tx)
}

func (t txRepositories) Idempotency() repository.IdempotencyRepository {
	return NewIdempotencyRepository(t.tx)
}

func (t txRepositories) Outbox() repository.OutboxRepository {
	return NewOutboxRepository(t.tx)
}

// dbError maps driver errors onto application errors.
func dbError(op, resource string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFound(resource, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.NewConflict(fmt.Sprintf("%s already exists", resource), err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func rowsAffected(result sql.Result) (int64, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
