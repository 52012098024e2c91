package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type idempotencyRepository struct {
	h handle
}

func (r *idempotencyRepository) Insert(ctx context.Context, key *model.IdempotencyKey) (bool, error) {
	var inserted bool
	err := r.h.read(func(st *state) error {
		if _, exists := st.keys[key.Key]; exists {
			return nil
		}
		now := r.h.now()
		key.CreatedAt = now
		key.UpdatedAt = now
		stored := *key
		stored.BookingID = cloneUUID(key.BookingID)
		st.keys[key.Key] = stored
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (*model.IdempotencyKey, error) {
	var out *model.IdempotencyKey
	err := r.h.read(func(st *state) error {
		k, ok := st.keys[key]
		if !ok {
			return errors.NewNotFound("idempotency key", nil)
		}
		k.BookingID = cloneUUID(k.BookingID)
		out = &k
		return nil
	})
	return out, err
}

func (r *idempotencyRepository) TakeOver(ctx context.Context, key string, now, lockedUntil time.Time) (bool, error) {
	var taken bool
	err := r.h.read(func(st *state) error {
		k, ok := st.keys[key]
		if !ok || k.Status != model.IdempotencyStatusProcessing || !k.LockedUntil.Before(now) {
			return nil
		}
		k.LockedUntil = lockedUntil
		k.UpdatedAt = now
		st.keys[key] = k
		taken = true
		return nil
	})
	return taken, err
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, bookingID uuid.UUID) error {
	return r.h.read(func(st *state) error {
		k, ok := st.keys[key]
		if !ok {
			return errors.NewNotFound("idempotency key", nil)
		}
		id := bookingID
		k.Status = model.IdempotencyStatusCompleted
		k.BookingID = &id
		k.UpdatedAt = r.h.now()
		st.keys[key] = k
		return nil
	})
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	return r.h.read(func(st *state) error {
		if k, ok := st.keys[key]; ok && k.Status == model.IdempotencyStatusProcessing {
			delete(st.keys, key)
		}
		return nil
	})
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.h.read(func(st *state) error {
		for key, k := range st.keys {
			expired := (k.Status == model.IdempotencyStatusCompleted && k.UpdatedAt.Before(before)) ||
				(k.Status == model.IdempotencyStatusProcessing && k.LockedUntil.Before(before))
			if expired {
				delete(st.keys, key)
				n++
			}
		}
		return nil
	})
	return n, err
}
