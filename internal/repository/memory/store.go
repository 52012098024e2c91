// Package memory is a process-local storage driver. Transactions run under a
// single lock against a copy of the data that replaces the original on commit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type state struct {
	bookings      map[uuid.UUID]model.Booking
	slots         map[uuid.UUID]model.ScheduleSlot
	transactions  map[uuid.UUID]model.Transaction
	notifications map[uuid.UUID]model.Notification
	keys          map[string]model.IdempotencyKey
	outbox        map[uuid.UUID]model.OutboxEvent
	services      map[uuid.UUID]model.Service
	providers     map[uuid.UUID]model.Provider
	customers     map[uuid.UUID]model.Customer
}

func newState() *state {
	return &state{
		bookings:      make(map[uuid.UUID]model.Booking),
		slots:         make(map[uuid.UUID]model.ScheduleSlot),
		transactions:  make(map[uuid.UUID]model.Transaction),
		notifications: make(map[uuid.UUID]model.Notification),
		keys:          make(map[string]model.IdempotencyKey),
		outbox:        make(map[uuid.UUID]model.OutboxEvent),
		services:      make(map[uuid.UUID]model.Service),
		providers:     make(map[uuid.UUID]model.Provider),
		customers:     make(map[uuid.UUID]model.Customer),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.providers {
		c.providers[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// handle routes repository calls either to the locked root state or to the
// snapshot owned by an open transaction.
type handle struct {
	store *Store
	tx    *state
}

func (h handle) read(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.st)
}

func (h handle) now() time.Time {
	return h.store.now().UTC()
}

func (s *Store) root() handle {
	return handle{store: s}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepository{s.root()}
}

func (s *Store) Schedules() repository.ScheduleRepository {
	return &scheduleRepository{s.root()}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepository{s.root()}
}

func (s *Store) Idempotency() repository.IdempotencyRepository {
	return &idempotencyRepository{s.root()}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{s.root()}
}

func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepository{s.root()}
}

func (s *Store) Directory() repository.DirectoryRepository {
	return &directoryRepository{s.root()}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type txView struct {
	h handle
}

func (t txView) Bookings() repository.BookingRepository {
	return &bookingRepository{t.h}
}

func (t txView) Schedules() repository.ScheduleRepository {
	return &scheduleRepository{t.h}
}

func (t txView) Transactions() repository.TransactionRepository {
	return &transactionRepository{t.h}
}

func (t txView) Idempotency() repository.IdempotencyRepository {
	return &idempotencyRepository{t.h}
}

func (t txView) Outbox() repository.OutboxRepository {
	return &outboxRepository{t.h}
}

// WithinTx serializes fn against every other store operation. Repositories
// obtained from tx must not be used after fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, txView{h: handle{store: s, tx: snapshot}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.st = snapshot
	return nil
}

// SetClock overrides the time source used for leases and timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddService, AddProvider and AddCustomer seed the read-only directory.
func (s *Store) AddService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.services[svc.ID] = svc
}

func (s *Store) AddProvider(p model.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UserID = cloneUUID(p.UserID)
	s.st.providers[p.ID] = p
}

func (s *Store) AddCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.customers[c.ID] = c
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
