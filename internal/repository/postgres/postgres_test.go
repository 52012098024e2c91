package postgres

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestScheduleRepository_SetAvailability(t *testing.T) {
	slotID := uuid.New()

	t.Run("flips availability", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("UPDATE schedule_slots").
			WithArgs(false, slotID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := NewScheduleRepository(db).SetAvailability(context.Background(), slotID, false)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already in requested state", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("UPDATE schedule_slots").
			WithArgs(false, slotID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(slotID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		changed, err := NewScheduleRepository(db).SetAvailability(context.Background(), slotID, false)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing slot", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("UPDATE schedule_slots").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := NewScheduleRepository(db).SetAvailability(context.Background(), slotID, true)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestScheduleRepository_FindCovering(t *testing.T) {
	db, mock := newMock(t)
	providerID := uuid.New()
	slotID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "provider_id", "day_of_week", "start_time", "end_time",
		"is_available", "version", "created_at", "updated_at",
	}).AddRow(slotID.String(), providerID.String(), "MONDAY", "09:00:00", "10:00:00", true, 3, now, now)

	mock.ExpectQuery("FROM schedule_slots").
		WithArgs(providerID, "MONDAY", "09:30:00").
		WillReturnRows(rows)

	slot, err := NewScheduleRepository(db).FindCovering(context.Background(), providerID, model.Monday, model.NewTimeOfDay(9, 30))
	require.NoError(t, err)
	assert.Equal(t, slotID, slot.ID)
	assert.Equal(t, model.NewTimeOfDay(9, 0), slot.StartTime)
	assert.Equal(t, model.NewTimeOfDay(10, 0), slot.EndTime)
	assert.Equal(t, 3, slot.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_ActiveSlotConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: activeSlotIndex})

	booking := &model.Booking{
		CustomerID:  uuid.New(),
		ServiceID:   uuid.New(),
		ProviderID:  uuid.New(),
		BookingDate: model.NewDate(2026, time.March, 2),
		BookingTime: model.NewTimeOfDay(10, 0),
		Status:      model.BookingStatusPending,
		TotalCost:   decimal.NewFromInt(500),
	}
	err := NewBookingRepository(db).Create(context.Background(), booking)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Contains(t, err.Error(), "provider already has a booking at this time")
}

func TestBookingRepository_Get(t *testing.T) {
	db, mock := newMock(t)
	id := uuid.New()
	customerID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "customer_id", "service_id", "provider_id", "slot_id",
		"booking_date", "booking_time", "status", "total_cost", "note",
		"payment_method", "full_payment", "created_at", "updated_at",
	}).AddRow(
		id.String(), customerID.String(), uuid.NewString(), uuid.NewString(), nil,
		time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), "10:00:00", "PENDING", "500.00", nil,
		"gcash", false, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs(id).
		WillReturnRows(rows)

	booking, err := NewBookingRepository(db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, customerID, booking.CustomerID)
	assert.Nil(t, booking.SlotID)
	assert.Equal(t, "2026-03-02", booking.BookingDate.String())
	assert.Equal(t, model.NewTimeOfDay(10, 0), booking.BookingTime)
	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.True(t, decimal.NewFromInt(500).Equal(booking.TotalCost))
	assert.Equal(t, model.PaymentMethodGCash, booking.PaymentMethod)
}

func TestBookingRepository_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewBookingRepository(db).Get(context.Background(), uuid.New())
	assert.True(t, errors.IsNotFound(err))
}

func TestBookingRepository_ListFilters(t *testing.T) {
	db, mock := newMock(t)
	providerID := uuid.New()
	status := model.BookingStatusConfirmed

	mock.ExpectQuery(`AND provider_id = \$1 AND status = \$2 ORDER BY booking_date`).
		WithArgs(providerID, "CONFIRMED").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	bookings, err := NewBookingRepository(db).List(context.Background(), &model.BookingFilters{
		ProviderID: &providerID,
		Status:     &status,
	})
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_CreateIfAbsent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNotificationRepository(db)
	n := &model.Notification{
		UserID:        uuid.New(),
		Type:          model.NotificationTypeBooking,
		ReferenceID:   uuid.New(),
		ReferenceType: model.NotificationReferenceBooking,
		Message:       "New booking",
	}

	mock.ExpectExec("ON CONFLICT").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT").WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepository_TakeOver(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	until := now.Add(30 * time.Second)

	mock.ExpectExec("UPDATE idempotency_keys").
		WithArgs(until, now, "key-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	taken, err := NewIdempotencyRepository(db).TakeOver(context.Background(), "key-1", now, until)
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_MarkRetryMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("SET status = 'retry'").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewOutboxRepository(db).MarkRetry(context.Background(), uuid.New(), "boom", time.Now())
	assert.True(t, errors.IsNotFound(err))
}

func TestStore_WithinTx(t *testing.T) {
	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM transactions").WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectRollback()

		boom := stderrors.New("boom")
		err := NewStore(db).WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			n, err := tx.Transactions().DeleteByBooking(ctx, uuid.New())
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM bookings").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewStore(db).WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			deleted, err := tx.Bookings().Delete(ctx, uuid.New())
			assert.True(t, deleted)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
