package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

// Store owns the availability flag of provider schedule slots. Bind it to a
// transaction's ScheduleRepository to make reservations part of that unit of work.
type Store struct {
	repo repository.ScheduleRepository
}

func NewStore(repo repository.ScheduleRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) FindSlot(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, start model.TimeOfDay) (*model.ScheduleSlot, error) {
	return s.repo.FindByStart(ctx, providerID, day, start)
}

func (s *Store) FindSlotCovering(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, t model.TimeOfDay) (*model.ScheduleSlot, error) {
	return s.repo.FindCovering(ctx, providerID, day, t)
}

// Resolve tries an exact start match, then a covering slot. A nil slot with a
// nil error means the provider has no slot for that time.
func (s *Store) Resolve(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek, t model.TimeOfDay) (*model.ScheduleSlot, error) {
	slot, err := s.FindSlot(ctx, providerID, day, t)
	if err == nil {
		return slot, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	slot, err = s.FindSlotCovering(ctx, providerID, day, t)
	if err == nil {
		return slot, nil
	}
	if errors.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// Reserve marks the slot occupied. changed is false when it already was.
func (s *Store) Reserve(ctx context.Context, slotID uuid.UUID) (bool, error) {
	changed, err := s.repo.SetAvailability(ctx, slotID, false)
	if err != nil {
		return false, fmt.Errorf("failed to reserve slot: %w", err)
	}
	return changed, nil
}

// Release marks the slot available again.
func (s *Store) Release(ctx context.Context, slotID uuid.UUID) (bool, error) {
	changed, err := s.repo.SetAvailability(ctx, slotID, true)
	if err != nil {
		return false, fmt.Errorf("failed to release slot: %w", err)
	}
	return changed, nil
}

func (s *Store) ListAvailable(ctx context.Context, providerID uuid.UUID, day model.DayOfWeek) ([]*model.ScheduleSlot, error) {
	return s.repo.ListByProvider(ctx, providerID, &day, true)
}

// List returns every slot of the provider, optionally limited to one day.
func (s *Store) List(ctx context.Context, providerID uuid.UUID, day *model.DayOfWeek) ([]*model.ScheduleSlot, error) {
	return s.repo.ListByProvider(ctx, providerID, day, false)
}

func (s *Store) CreateSlot(ctx context.Context, slot *model.ScheduleSlot) error {
	if err := slot.Validate(); err != nil {
		return errors.NewInvalidArgument(err.Error(), err)
	}
	return s.repo.Create(ctx, slot)
}
