package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/idempotency"
	"github.com/jwalitptl/booking-api/internal/service/payment"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type CreateBookingInput struct {
	CustomerID    uuid.UUID
	ServiceID     uuid.UUID
	BookingDate   model.Date
	BookingTime   model.TimeOfDay
	Note          *string
	PaymentMethod model.PaymentMethod
	FullPayment   bool
	// IdempotencyKey is optional. Without it every call creates a booking.
	IdempotencyKey string
}

type CreateBookingResult struct {
	Booking     *model.Booking
	Transaction *model.Transaction
	// Duplicate is set when the key was seen before and Booking is the
	// original booking.
	Duplicate bool
}

// fingerprint is the part of the input that identifies a retried request.
type fingerprint struct {
	CustomerID    uuid.UUID           `json:"customer_id"`
	ServiceID     uuid.UUID           `json:"service_id"`
	BookingDate   string              `json:"booking_date"`
	BookingTime   string              `json:"booking_time"`
	Note          *string             `json:"note"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	FullPayment   bool                `json:"full_payment"`
}

func (in CreateBookingInput) validate() error {
	if in.CustomerID == uuid.Nil {
		return errors.NewInvalidArgument("customer_id is required", nil)
	}
	if in.ServiceID == uuid.Nil {
		return errors.NewInvalidArgument("service_id is required", nil)
	}
	if in.BookingDate.IsZero() {
		return errors.NewInvalidArgument("booking_date is required", nil)
	}
	return nil
}

// CreateBooking reserves the matching slot, stores the booking with its
// payment transaction and notifies the provider once the booking is committed.
func (s *Service) CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error) {
	start := time.Now()
	defer func() { s.metrics.CreateLatency.Observe(time.Since(start).Seconds()) }()

	if err := input.validate(); err != nil {
		return nil, err
	}
	input.PaymentMethod = model.NormalizePaymentMethod(string(input.PaymentMethod))

	directory := s.store.Directory()
	svc, err := directory.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.Price.IsNegative() {
		return nil, errors.NewInvalidArgument("service price cannot be negative", nil)
	}
	provider, err := directory.GetProvider(ctx, svc.ProviderID)
	if err != nil {
		return nil, err
	}
	if _, err := directory.GetCustomer(ctx, input.CustomerID); err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	var requestHash string
	if key != "" {
		requestHash, err = idempotency.Fingerprint(fingerprint{
			CustomerID:    input.CustomerID,
			ServiceID:     input.ServiceID,
			BookingDate:   input.BookingDate.String(),
			BookingTime:   input.BookingTime.String(),
			Note:          input.Note,
			PaymentMethod: input.PaymentMethod,
			FullPayment:   input.FullPayment,
		})
		if err != nil {
			return nil, err
		}

		outcome, err := s.guard.CheckAndReserve(ctx, key, requestHash)
		if err != nil {
			return nil, err
		}
		if outcome.Duplicate {
			s.metrics.BookingDuplicates.Inc()
			return s.duplicate(ctx, outcome.BookingID)
		}
	}

	status := model.BookingStatusPending
	if s.cfg.AutoConfirm {
		status = model.BookingStatusConfirmed
	}
	booking := &model.Booking{
		CustomerID:    input.CustomerID,
		ServiceID:     svc.ID,
		ProviderID:    provider.ID,
		BookingDate:   input.BookingDate,
		BookingTime:   input.BookingTime,
		Status:        status,
		TotalCost:     svc.Price.Round(2),
		Note:          input.Note,
		PaymentMethod: input.PaymentMethod,
		FullPayment:   input.FullPayment,
	}

	var txn *model.Transaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		slots := schedule.NewStore(tx.Schedules())
		slot, err := slots.Resolve(ctx, provider.ID, booking.BookingDate.DayOfWeek(), booking.BookingTime)
		if err != nil {
			return err
		}
		if slot != nil {
			reserved, err := slots.Reserve(ctx, slot.ID)
			if err != nil {
				return err
			}
			if !reserved {
				return errors.NewConflict("time slot is no longer available", nil)
			}
			booking.SlotID = &slot.ID
		}

		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return err
		}

		if ob, ok := payment.ComputeObligation(booking.PaymentMethod, booking.FullPayment, booking.TotalCost, s.now().UTC()); ok {
			txn = ob.NewTransaction(booking.ID, booking.PaymentMethod)
			if err := tx.Transactions().Create(ctx, txn); err != nil {
				return err
			}
		}

		if err := s.enqueue(ctx, tx, model.EventBookingCreated, booking); err != nil {
			return err
		}

		if key != "" {
			return s.guard.Complete(ctx, tx.Idempotency(), key, booking.ID)
		}
		return nil
	})
	if err != nil {
		if errors.IsConflict(err) {
			s.metrics.BookingConflicts.Inc()
		}
		if key != "" {
			if relErr := s.guard.Release(ctx, key); relErr != nil {
				s.log.Error(relErr, "failed to release idempotency key", "key", key)
			}
		}
		return nil, err
	}

	label := string(booking.PaymentMethod)
	if label == "" {
		label = "none"
	}
	s.metrics.BookingsCreated.WithLabelValues(label).Inc()
	s.log.Info("booking created",
		"booking_id", booking.ID.String(),
		"provider_id", booking.ProviderID.String(),
		"status", string(booking.Status),
	)

	if err := s.notifier.NotifyProviderOfBooking(ctx, booking); err != nil {
		s.metrics.NotificationFailures.Inc()
		s.log.Error(err, "failed to notify provider", "booking_id", booking.ID.String())
	}

	if key != "" {
		s.guard.Remember(key, requestHash, booking.ID)
	}

	return &CreateBookingResult{Booking: booking, Transaction: txn}, nil
}

func (s *Service) duplicate(ctx context.Context, bookingID uuid.UUID) (*CreateBookingResult, error) {
	booking, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := &CreateBookingResult{Booking: booking, Duplicate: true}

	txns, err := s.store.Transactions().ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if len(txns) > 0 {
		result.Transaction = txns[0]
	}
	return result, nil
}
