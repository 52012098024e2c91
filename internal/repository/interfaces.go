package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

// All repository interfaces in one file. Lookups of absent rows return a
// pkg/errors NotFound error; unique violations return Conflict.
type (
	BookingRepository interface {
		// Create rejects a second active booking for the same provider, date and time.
		Create(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		// GetForUpdate locks the row until the surrounding transaction ends.
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		Update(ctx context.Context, booking *model.Booking) error
		Delete(ctx context.Context, id uuid.UUID) (bool, error)
		List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
	}

	ScheduleRepository interface {
		Create(ctx context.Context, slot *model.ScheduleSlot) error
		Get(ctx context.Context, id uuid.UUID) (*model.ScheduleSlot, error)
		FindByStart(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, start model.TimeOfDay) (*model.ScheduleSlot, error)
		FindCovering(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, t model.TimeOfDay) (*model.ScheduleSlot, error)
		// SetAvailability flips the flag only if it differs and reports whether it did.
		SetAvailability(ctx context.Context, id uuid.UUID, available bool) (bool, error)
		ListByProvider(ctx context.Context, providerID uuid.UUID, day *model.DayOfWeek, onlyAvailable bool) ([]*model.ScheduleSlot, error)
	}

	TransactionRepository interface {
		Create(ctx context.Context, txn *model.Transaction) error
		Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
		ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*model.Transaction, error)
		Update(ctx context.Context, txn *model.Transaction) error
		DeleteByBooking(ctx context.Context, bookingID uuid.UUID) (int64, error)
	}

	NotificationRepository interface {
		// CreateIfAbsent is a no-op when the user already has a notification of
		// the same type for the same reference.
		CreateIfAbsent(ctx context.Context, notification *model.Notification) (bool, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	}

	IdempotencyRepository interface {
		// Insert stores key if absent and reports whether this call created it.
		Insert(ctx context.Context, key *model.IdempotencyKey) (bool, error)
		Get(ctx context.Context, key string) (*model.IdempotencyKey, error)
		// TakeOver extends an expired PROCESSING lease and reports whether it did.
		TakeOver(ctx context.Context, key string, now, lockedUntil time.Time) (bool, error)
		Complete(ctx context.Context, key string, bookingID uuid.UUID) error
		// Release removes a PROCESSING key so the request can be retried.
		Release(ctx context.Context, key string) error
		DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	}

	DirectoryRepository interface {
		GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
		GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events to the caller.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Tx exposes the repositories that take part in a unit of work.
	Tx interface {
		Bookings() BookingRepository
		Schedules() ScheduleRepository
		Transactions() TransactionRepository
		Idempotency() IdempotencyRepository
		Outbox() OutboxRepository
	}

	Transactor interface {
		// WithinTx commits when fn returns nil and rolls back otherwise.
		WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	}

	Store interface {
		Tx
		Transactor
		Notifications() NotificationRepository
		Directory() DirectoryRepository
		Ping(ctx context.Context) error
	}
)
