package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

const bookingColumns = `
	id, customer_id, service_id, provider_id, slot_id,
	booking_date, booking_time, status, total_cost, note,
	payment_method, full_payment, created_at, updated_at`

const activeSlotIndex = "bookings_active_slot_uniq"

type bookingRepository struct {
	db sqlx.ExtContext
}

func NewBookingRepository(db sqlx.ExtContext) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func bookingError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == activeSlotIndex {
		return errors.NewConflict("provider already has a booking at this time", err)
	}
	return dbError(op, "booking", err)
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.ServiceID,
		booking.ProviderID,
		booking.SlotID,
		booking.BookingDate,
		booking.BookingTime,
		booking.Status,
		booking.TotalCost,
		booking.Note,
		booking.PaymentMethod,
		booking.FullPayment,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return bookingError("create booking", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	if err := sqlx.GetContext(ctx, r.db, &booking, query, id); err != nil {
		return nil, bookingError("get booking", err)
	}
	return &booking, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET booking_date = $1, booking_time = $2, status = $3, total_cost = $4,
			note = $5, slot_id = $6, updated_at = $7
		WHERE id = $8
	`
	booking.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		booking.BookingDate,
		booking.BookingTime,
		booking.Status,
		booking.TotalCost,
		booking.Note,
		booking.SlotID,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return bookingError("update booking", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFound("booking", nil)
	}
	return nil
}

func (r *bookingRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1 = 1`
	var args []interface{}
	argCount := 1

	if filters != nil {
		if filters.CustomerID != nil {
			query += fmt.Sprintf(" AND customer_id = $%d", argCount)
			args = append(args, *filters.CustomerID)
			argCount++
		}
		if filters.ProviderID != nil {
			query += fmt.Sprintf(" AND provider_id = $%d", argCount)
			args = append(args, *filters.ProviderID)
			argCount++
		}
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
	}

	query += " ORDER BY booking_date ASC, booking_time ASC, created_at ASC"

	var bookings []*model.Booking
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
