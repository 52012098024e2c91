package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type outboxRepository struct {
	h handle
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	return r.h.read(func(st *state) error {
		now := r.h.now()
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		event.Status = model.OutboxStatusPending
		event.CreatedAt = now
		event.UpdatedAt = now
		st.outbox[event.ID] = *event
		return nil
	})
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	err := r.h.read(func(st *state) error {
		now := r.h.now()
		var due []model.OutboxEvent
		for _, e := range st.outbox {
			switch e.Status {
			case model.OutboxStatusPending, model.OutboxStatusRetry:
				if e.RetryAt != nil && e.RetryAt.After(now) {
					continue
				}
			case model.OutboxStatusProcessing:
				if e.LockedUntil == nil || e.LockedUntil.After(now) {
					continue
				}
			default:
				continue
			}
			due = append(due, e)
		}
		sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
		if len(due) > limit {
			due = due[:limit]
		}

		lockedUntil := now.Add(lease)
		for _, e := range due {
			e.Status = model.OutboxStatusProcessing
			e.LockedUntil = &lockedUntil
			e.UpdatedAt = now
			st.outbox[e.ID] = e
			claimed := e
			out = append(out, &claimed)
		}
		return nil
	})
	return out, err
}

func (r *outboxRepository) update(id uuid.UUID, fn func(e *model.OutboxEvent, now time.Time)) error {
	return r.h.read(func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return errors.NewNotFound("outbox event", nil)
		}
		now := r.h.now()
		fn(&e, now)
		e.UpdatedAt = now
		e.LockedUntil = nil
		st.outbox[id] = e
		return nil
	})
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent, now time.Time) {
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &now
		e.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent, _ time.Time) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errorMessage
		e.RetryCount++
		e.RetryAt = &retryAt
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.update(id, func(e *model.OutboxEvent, _ time.Time) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errorMessage
		e.RetryCount++
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.h.read(func(st *state) error {
		for id, e := range st.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				delete(st.outbox, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
