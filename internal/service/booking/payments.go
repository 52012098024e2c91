package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

// ConfirmCashPayment settles the booking's pending cash transaction and
// completes the booking.
func (s *Service) ConfirmCashPayment(ctx context.Context, bookingID uuid.UUID) (*model.Transaction, error) {
	var (
		settled *model.Transaction
		change  *transition
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}

		txn, err := findTransaction(ctx, tx, bookingID, func(t *model.Transaction) bool {
			return t.PaymentMethod == model.PaymentMethodCash && t.Status == model.TransactionStatusPending
		})
		if err != nil {
			return err
		}
		if txn == nil {
			return errors.NewNotFound("pending cash transaction", nil)
		}

		now := s.now().UTC()
		txn.Status = model.TransactionStatusCompleted
		txn.TransactionDate = &now
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		if change, err = s.transition(ctx, tx, b, model.BookingStatusCompleted); err != nil {
			return err
		}
		if change != nil {
			if err := tx.Bookings().Update(ctx, b); err != nil {
				return err
			}
		}
		if err := s.enqueue(ctx, tx, model.EventPaymentSettled, b); err != nil {
			return err
		}

		settled = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(change)
	s.log.Info("cash payment confirmed",
		"booking_id", bookingID.String(),
		"transaction_id", settled.ID.String(),
	)
	return settled, nil
}

// AcknowledgeGatewayPayment applies a gateway callback to the booking's gcash
// transaction. Statuses only move forward, so a repeated callback is a no-op.
func (s *Service) AcknowledgeGatewayPayment(ctx context.Context, p model.GatewayPayment) (*model.Transaction, error) {
	if p.Amount.IsNegative() {
		return nil, errors.NewInvalidArgument("amount cannot be negative", nil)
	}

	var txn *model.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, p.BookingID)
		if err != nil {
			return err
		}

		txn, err = findTransaction(ctx, tx, p.BookingID, func(t *model.Transaction) bool {
			return t.PaymentMethod == model.PaymentMethodGCash
		})
		if err != nil {
			return err
		}
		if txn == nil {
			return errors.NewNotFound("gcash transaction", nil)
		}
		if txn.Status == model.TransactionStatusCompleted {
			return nil
		}

		amount := p.Amount.Round(2)
		if amount.LessThan(txn.Amount) {
			return errors.NewInvalidArgument("payment amount is below the amount due", nil)
		}

		next := txn.Status
		if amount.GreaterThanOrEqual(b.TotalCost) {
			next = model.TransactionStatusCompleted
			txn.Amount = amount
		} else if txn.Status == model.TransactionStatusPending {
			next = model.TransactionStatusPartial
		}
		if !txn.Status.CanAdvanceTo(next) {
			return errors.NewConflict("transaction status cannot move backwards", nil)
		}

		now := s.now().UTC()
		txn.Status = next
		txn.TransactionDate = &now
		if err := tx.Transactions().Update(ctx, txn); err != nil {
			return err
		}

		if next == model.TransactionStatusCompleted {
			return s.enqueue(ctx, tx, model.EventPaymentSettled, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("gateway payment acknowledged",
		"booking_id", p.BookingID.String(),
		"status", string(txn.Status),
		"reference", p.Reference,
	)
	return txn, nil
}

func findTransaction(ctx context.Context, tx repository.Tx, bookingID uuid.UUID, match func(*model.Transaction) bool) (*model.Transaction, error) {
	txns, err := tx.Transactions().ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for _, t := range txns {
		if match(t) {
			return t, nil
		}
	}
	return nil, nil
}
