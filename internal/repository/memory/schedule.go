package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type scheduleRepository struct {
	h handle
}

func (r *scheduleRepository) Create(ctx context.Context, slot *model.ScheduleSlot) error {
	return r.h.read(func(st *state) error {
		if slot.ID == uuid.Nil {
			slot.ID = uuid.New()
		}
		for _, other := range st.slots {
			if other.ProviderID == slot.ProviderID && other.DayOfWeek == slot.DayOfWeek && other.StartTime == slot.StartTime {
				return errors.NewConflict("slot with this start time already exists", nil)
			}
		}
		now := r.h.now()
		slot.CreatedAt = now
		slot.UpdatedAt = now
		slot.Version = 1
		st.slots[slot.ID] = *slot
		return nil
	})
}

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScheduleSlot, error) {
	var out *model.ScheduleSlot
	err := r.h.read(func(st *state) error {
		slot, ok := st.slots[id]
		if !ok {
			return errors.NewNotFound("schedule slot", nil)
		}
		out = &slot
		return nil
	})
	return out, err
}

func (r *scheduleRepository) FindByStart(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, start model.TimeOfDay) (*model.ScheduleSlot, error) {
	return r.find(func(s *model.ScheduleSlot) bool {
		return s.ProviderID == providerID && s.DayOfWeek == day && s.StartTime == start
	})
}

func (r *scheduleRepository) FindCovering(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, t model.TimeOfDay) (*model.ScheduleSlot, error) {
	return r.find(func(s *model.ScheduleSlot) bool {
		return s.ProviderID == providerID && s.DayOfWeek == day && s.Covers(t)
	})
}

// find returns the earliest-starting slot matching pred.
func (r *scheduleRepository) find(pred func(*model.ScheduleSlot) bool) (*model.ScheduleSlot, error) {
	var out *model.ScheduleSlot
	err := r.h.read(func(st *state) error {
		for _, slot := range st.slots {
			slot := slot
			if !pred(&slot) {
				continue
			}
			if out == nil || slot.StartTime < out.StartTime {
				out = &slot
			}
		}
		if out == nil {
			return errors.NewNotFound("schedule slot", nil)
		}
		return nil
	})
	return out, err
}

func (r *scheduleRepository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (bool, error) {
	var changed bool
	err := r.h.read(func(st *state) error {
		slot, ok := st.slots[id]
		if !ok {
			return errors.NewNotFound("schedule slot", nil)
		}
		if slot.IsAvailable == available {
			return nil
		}
		slot.IsAvailable = available
		slot.Version++
		slot.UpdatedAt = r.h.now()
		st.slots[id] = slot
		changed = true
		return nil
	})
	return changed, err
}

func (r *scheduleRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, day *model.DayOfWeek, onlyAvailable bool) ([]*model.ScheduleSlot, error) {
	var out []*model.ScheduleSlot
	err := r.h.read(func(st *state) error {
		for _, slot := range st.slots {
			slot := slot
			if slot.ProviderID != providerID {
				continue
			}
			if day != nil && slot.DayOfWeek != *day {
				continue
			}
			if onlyAvailable && !slot.IsAvailable {
				continue
			}
			out = append(out, &slot)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return dayIndex(out[i].DayOfWeek) < dayIndex(out[j].DayOfWeek)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, err
}

func dayIndex(d model.DayOfWeek) int {
	for i, w := range []model.DayOfWeek{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday, model.Saturday, model.Sunday} {
		if d == w {
			return i
		}
	}
	return 7
}
