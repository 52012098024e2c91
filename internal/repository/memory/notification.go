package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type notificationRepository struct {
	h handle
}

func (r *notificationRepository) CreateIfAbsent(ctx context.Context, n *model.Notification) (bool, error) {
	var created bool
	err := r.h.read(func(st *state) error {
		for _, other := range st.notifications {
			if other.UserID == n.UserID && other.Type == n.Type &&
				other.ReferenceType == n.ReferenceType && other.ReferenceID == n.ReferenceID {
				return nil
			}
		}
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.CreatedAt = r.h.now()
		st.notifications[n.ID] = *n
		created = true
		return nil
	})
	return created, err
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	var out []*model.Notification
	err := r.h.read(func(st *state) error {
		for _, n := range st.notifications {
			n := n
			if n.UserID == userID {
				out = append(out, &n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

type directoryRepository struct {
	h handle
}

func (r *directoryRepository) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var out *model.Service
	err := r.h.read(func(st *state) error {
		svc, ok := st.services[id]
		if !ok {
			return errors.NewNotFound("service", nil)
		}
		out = &svc
		return nil
	})
	return out, err
}

func (r *directoryRepository) GetProvider(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var out *model.Provider
	err := r.h.read(func(st *state) error {
		p, ok := st.providers[id]
		if !ok {
			return errors.NewNotFound("provider", nil)
		}
		p.UserID = cloneUUID(p.UserID)
		out = &p
		return nil
	})
	return out, err
}

func (r *directoryRepository) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var out *model.Customer
	err := r.h.read(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return errors.NewNotFound("customer", nil)
		}
		out = &c
		return nil
	})
	return out, err
}
