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

const transactionColumns = `
	id, booking_id, amount, payment_method, status,
	transaction_date, created_at, updated_at`

type transactionRepository struct {
	db sqlx.ExtContext
}

func NewTransactionRepository(db sqlx.ExtContext) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = time.Now().UTC()
	txn.UpdatedAt = txn.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		txn.ID,
		txn.BookingID,
		txn.Amount,
		txn.PaymentMethod,
		txn.Status,
		txn.TransactionDate,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		return dbError("create transaction", "transaction", err)
	}
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var txn model.Transaction
	err := sqlx.GetContext(ctx, r.db, &txn, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, dbError("get transaction", "transaction", err)
	}
	return &txn, nil
}

func (r *transactionRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`
	var txns []*model.Transaction
	if err := sqlx.SelectContext(ctx, r.db, &txns, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func (r *transactionRepository) Update(ctx context.Context, txn *model.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, status = $2, transaction_date = $3, updated_at = $4
		WHERE id = $5
	`
	txn.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		txn.Amount,
		txn.Status,
		txn.TransactionDate,
		txn.UpdatedAt,
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFound("transaction", nil)
	}
	return nil
}

func (r *transactionRepository) DeleteByBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE booking_id = $1`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return rowsAffected(result)
}
