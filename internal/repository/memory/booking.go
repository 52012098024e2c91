package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type bookingRepository struct {
	h handle
}

func cloneBooking(b *model.Booking) model.Booking {
	c := *b
	c.SlotID = cloneUUID(b.SlotID)
	c.Note = cloneString(b.Note)
	return c
}

// activeClash mirrors the partial unique index on active bookings.
func activeClash(st *state, b *model.Booking) bool {
	if !b.Status.IsActive() {
		return false
	}
	for id, other := range st.bookings {
		if id == b.ID || !other.Status.IsActive() {
			continue
		}
		if other.ProviderID == b.ProviderID &&
			other.BookingDate.Equal(b.BookingDate.Time) &&
			other.BookingTime == b.BookingTime {
			return true
		}
	}
	return false
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.h.read(func(st *state) error {
		if booking.ID == uuid.Nil {
			booking.ID = uuid.New()
		}
		if _, exists := st.bookings[booking.ID]; exists {
			return errors.NewConflict("booking already exists", nil)
		}
		if activeClash(st, booking) {
			return errors.NewConflict("provider already has a booking at this time", nil)
		}
		now := r.h.now()
		booking.CreatedAt = now
		booking.UpdatedAt = now
		st.bookings[booking.ID] = cloneBooking(booking)
		return nil
	})
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var out *model.Booking
	err := r.h.read(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return errors.NewNotFound("booking", nil)
		}
		c := cloneBooking(&b)
		out = &c
		return nil
	})
	return out, err
}

func (r *bookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return r.Get(ctx, id)
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	return r.h.read(func(st *state) error {
		existing, ok := st.bookings[booking.ID]
		if !ok {
			return errors.NewNotFound("booking", nil)
		}
		if activeClash(st, booking) {
			return errors.NewConflict("provider already has a booking at this time", nil)
		}
		booking.CreatedAt = existing.CreatedAt
		booking.UpdatedAt = r.h.now()
		st.bookings[booking.ID] = cloneBooking(booking)
		return nil
	})
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.h.read(func(st *state) error {
		if _, ok := st.bookings[id]; ok {
			delete(st.bookings, id)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	var out []*model.Booking
	err := r.h.read(func(st *state) error {
		for _, b := range st.bookings {
			if filters != nil {
				if filters.CustomerID != nil && b.CustomerID != *filters.CustomerID {
					continue
				}
				if filters.ProviderID != nil && b.ProviderID != *filters.ProviderID {
					continue
				}
				if filters.Status != nil && b.Status != *filters.Status {
					continue
				}
			}
			c := cloneBooking(&b)
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate.Time) {
			return out[i].BookingDate.Before(out[j].BookingDate.Time)
		}
		if out[i].BookingTime != out[j].BookingTime {
			return out[i].BookingTime < out[j].BookingTime
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}
