package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type transactionRepository struct {
	h handle
}

func cloneTransaction(t *model.Transaction) model.Transaction {
	c := *t
	c.TransactionDate = cloneTime(t.TransactionDate)
	return c
}

func (r *transactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	return r.h.read(func(st *state) error {
		if _, ok := st.bookings[txn.BookingID]; !ok {
			return errors.NewNotFound("booking", nil)
		}
		if txn.ID == uuid.Nil {
			txn.ID = uuid.New()
		}
		now := r.h.now()
		txn.CreatedAt = now
		txn.UpdatedAt = now
		st.transactions[txn.ID] = cloneTransaction(txn)
		return nil
	})
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var out *model.Transaction
	err := r.h.read(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok {
			return errors.NewNotFound("transaction", nil)
		}
		c := cloneTransaction(&t)
		out = &c
		return nil
	})
	return out, err
}

func (r *transactionRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.Transaction, error) {
	var out []*model.Transaction
	err := r.h.read(func(st *state) error {
		for _, t := range st.transactions {
			if t.BookingID != bookingID {
				continue
			}
			c := cloneTransaction(&t)
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *transactionRepository) Update(ctx context.Context, txn *model.Transaction) error {
	return r.h.read(func(st *state) error {
		existing, ok := st.transactions[txn.ID]
		if !ok {
			return errors.NewNotFound("transaction", nil)
		}
		txn.CreatedAt = existing.CreatedAt
		txn.UpdatedAt = r.h.now()
		st.transactions[txn.ID] = cloneTransaction(txn)
		return nil
	})
}

func (r *transactionRepository) DeleteByBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var n int64
	err := r.h.read(func(st *state) error {
		for id, t := range st.transactions {
			if t.BookingID == bookingID {
				delete(st.transactions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
