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

const slotColumns = `
	id, provider_id, day_of_week, start_time, end_time,
	is_available, version, created_at, updated_at`

type scheduleRepository struct {
	db sqlx.ExtContext
}

func NewScheduleRepository(db sqlx.ExtContext) repository.ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, slot *model.ScheduleSlot) error {
	query := `
		INSERT INTO schedule_slots (` + slotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	slot.Version = 1
	slot.CreatedAt = time.Now().UTC()
	slot.UpdatedAt = slot.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		slot.ID,
		slot.ProviderID,
		slot.DayOfWeek,
		slot.StartTime,
		slot.EndTime,
		slot.IsAvailable,
		slot.Version,
		slot.CreatedAt,
		slot.UpdatedAt,
	)
	if err != nil {
		return dbError("create schedule slot", "schedule slot", err)
	}
	return nil
}

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScheduleSlot, error) {
	return r.getOne(ctx, `SELECT `+slotColumns+` FROM schedule_slots WHERE id = $1`, id)
}

func (r *scheduleRepository) FindByStart(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, start model.TimeOfDay) (*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE provider_id = $1 AND day_of_week = $2 AND start_time = $3
		LIMIT 1
	`
	return r.getOne(ctx, query, providerID, day, start)
}

func (r *scheduleRepository) FindCovering(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, t model.TimeOfDay) (*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE provider_id = $1 AND day_of_week = $2
		AND start_time <= $3 AND end_time >= $3
		ORDER BY start_time ASC
		LIMIT 1
	`
	return r.getOne(ctx, query, providerID, day, t)
}

func (r *scheduleRepository) getOne(ctx context.Context, query string, args ...interface{}) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	if err := sqlx.GetContext(ctx, r.db, &slot, query, args...); err != nil {
		return nil, dbError("get schedule slot", "schedule slot", err)
	}
	return &slot, nil
}

func (r *scheduleRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (bool, error) {
	query := `
		UPDATE schedule_slots
		SET is_available = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND is_available <> $1
	`
	result, err := r.db.ExecContext(ctx, query, available, id)
	if err != nil {
		return false, fmt.Errorf("failed to update slot availability: %w", err)
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS (SELECT 1 FROM schedule_slots WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("failed to check schedule slot: %w", err)
	}
	if !exists {
		return false, errors.NewNotFound("schedule slot", nil)
	}
	return false, nil
}

func (r *scheduleRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, day *model.DayOfWeek, onlyAvailable bool) ([]*model.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE provider_id = $1`
	args := []interface{}{providerID}

	if day != nil {
		query += " AND day_of_week = $2"
		args = append(args, *day)
	}
	if onlyAvailable {
		query += " AND is_available = TRUE"
	}

	query += ` ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_time ASC`

	var slots []*model.ScheduleSlot
	if err := sqlx.SelectContext(ctx, r.db, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list schedule slots: %w", err)
	}
	return slots, nil
}
