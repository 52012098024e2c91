package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/idempotency"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Config struct {
	// AutoConfirm creates bookings as CONFIRMED instead of PENDING.
	AutoConfirm bool
}

// Service coordinates bookings with provider schedules, payment transactions
// and provider notifications.
type Service struct {
	store    repository.Store
	guard    *idempotency.Guard
	notifier notification.Emitter
	metrics  *metrics.Metrics
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(store repository.Store, guard *idempotency.Guard, notifier notification.Emitter, m *metrics.Metrics, log *logger.Logger, cfg Config) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		guard:    guard,
		notifier: notifier,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

type UpdateBookingInput struct {
	BookingDate *model.Date
	BookingTime *model.TimeOfDay
	Status      *string
	TotalCost   *decimal.Decimal
	Note        *string
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return s.store.Bookings().Get(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	return s.store.Bookings().List(ctx, filters)
}

func (s *Service) ListCustomerBookings(ctx context.Context, customerID uuid.UUID) ([]*model.Booking, error) {
	return s.store.Bookings().List(ctx, &model.BookingFilters{CustomerID: &customerID})
}

func (s *Service) ListProviderBookings(ctx context.Context, providerID uuid.UUID) ([]*model.Booking, error) {
	return s.store.Bookings().List(ctx, &model.BookingFilters{ProviderID: &providerID})
}

func (s *Service) ListTransactions(ctx context.Context, bookingID uuid.UUID) ([]*model.Transaction, error) {
	if _, err := s.store.Bookings().Get(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListByBooking(ctx, bookingID)
}

// UpdateBooking applies a partial update. Rescheduling does not move the slot
// reservation; the active booking index still rejects an occupied time.
func (s *Service) UpdateBooking(ctx context.Context, id uuid.UUID, input UpdateBookingInput) (*model.Booking, error) {
	var next *model.BookingStatus
	if input.Status != nil {
		status, err := model.ParseBookingStatus(*input.Status)
		if err != nil {
			return nil, errors.NewInvalidArgument(err.Error(), err)
		}
		next = &status
	}
	if input.TotalCost != nil && input.TotalCost.IsNegative() {
		return nil, errors.NewInvalidArgument("total cost cannot be negative", nil)
	}

	var (
		booking *model.Booking
		change  *transition
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if input.BookingDate != nil {
			b.BookingDate = *input.BookingDate
		}
		if input.BookingTime != nil {
			b.BookingTime = *input.BookingTime
		}
		if input.TotalCost != nil {
			b.TotalCost = input.TotalCost.Round(2)
		}
		if input.Note != nil {
			b.Note = input.Note
		}
		if next != nil {
			if change, err = s.transition(ctx, tx, b, *next); err != nil {
				return err
			}
		}

		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(change)
	return booking, nil
}

// UpdateStatus moves the booking along the status graph. Terminal statuses
// release the booking's slot in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Booking, error) {
	next, err := model.ParseBookingStatus(status)
	if err != nil {
		return nil, errors.NewInvalidArgument(err.Error(), err)
	}
	return s.setStatus(ctx, id, next)
}

func (s *Service) CompleteBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return s.setStatus(ctx, id, model.BookingStatusCompleted)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, next model.BookingStatus) (*model.Booking, error) {
	var (
		booking *model.Booking
		change  *transition
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if change, err = s.transition(ctx, tx, b, next); err != nil {
			return err
		}
		if change != nil {
			if err := tx.Bookings().Update(ctx, b); err != nil {
				return err
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(change)
	return booking, nil
}

// DeleteBooking removes the booking and its transactions. A missing booking
// reports false without an error.
func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Bookings().GetForUpdate(ctx, id)
		if errors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		if b.Status.IsActive() {
			if err := s.releaseSlot(ctx, tx, b); err != nil {
				return err
			}
		}
		if _, err := tx.Transactions().DeleteByBooking(ctx, id); err != nil {
			return err
		}
		deleted, err = tx.Bookings().Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.log.Info("booking deleted", "booking_id", id.String())
	}
	return deleted, nil
}

type transition struct {
	from, to model.BookingStatus
}

// transition validates and applies a status change to b. A same-state update
// returns a nil transition.
func (s *Service) transition(ctx context.Context, tx repository.Tx, b *model.Booking, next model.BookingStatus) (*transition, error) {
	if b.Status == next {
		return nil, nil
	}
	if !b.Status.CanTransitionTo(next) {
		return nil, errors.NewConflict(fmt.Sprintf("cannot change booking status from %s to %s", b.Status, next), nil)
	}

	change := &transition{from: b.Status, to: next}
	b.Status = next

	if next.IsTerminal() {
		if err := s.releaseSlot(ctx, tx, b); err != nil {
			return nil, err
		}
	}

	var eventType string
	switch next {
	case model.BookingStatusCompleted:
		eventType = model.EventBookingCompleted
	case model.BookingStatusCancelled:
		eventType = model.EventBookingCancelled
	default:
		return change, nil
	}
	if err := s.enqueue(ctx, tx, eventType, b); err != nil {
		return nil, err
	}
	return change, nil
}

func (s *Service) recordTransition(change *transition) {
	if change == nil {
		return
	}
	s.metrics.BookingTransitions.WithLabelValues(string(change.from), string(change.to)).Inc()
}

// releaseSlot frees the slot the booking reserved. Bookings created without a
// slot fall back to the exact then covering lookup.
func (s *Service) releaseSlot(ctx context.Context, tx repository.Tx, b *model.Booking) error {
	slots := schedule.NewStore(tx.Schedules())

	var slotID uuid.UUID
	if b.SlotID != nil {
		slotID = *b.SlotID
	} else {
		slot, err := slots.Resolve(ctx, b.ProviderID, b.BookingDate.DayOfWeek(), b.BookingTime)
		if err != nil {
			return err
		}
		if slot == nil {
			return nil
		}
		slotID = slot.ID
	}

	changed, err := slots.Release(ctx, slotID)
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		s.metrics.SlotReleases.Inc()
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, tx repository.Tx, eventType string, b *model.Booking) error {
	event, err := model.NewBookingEvent(eventType, b)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return tx.Outbox().Create(ctx, event)
}
