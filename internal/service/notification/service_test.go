package notification

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/errors"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) CreateIfAbsent(ctx context.Context, n *model.Notification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*model.Notification), args.Error(1)
}

type fixture struct {
	store    *memory.Store
	booking  *model.Booking
	userID   uuid.UUID
	provider model.Provider
}

func newFixture(withUser bool) fixture {
	store := memory.NewStore()
	userID := uuid.New()
	provider := model.Provider{ID: uuid.New(), BusinessName: "Glow Spa"}
	if withUser {
		provider.UserID = &userID
	}
	svc := model.Service{ID: uuid.New(), ProviderID: provider.ID, Name: "Haircut", Price: decimal.NewFromInt(800)}
	customer := model.Customer{ID: uuid.New(), UserID: uuid.New(), FirstName: "Ana", LastName: "Reyes"}

	store.AddProvider(provider)
	store.AddService(svc)
	store.AddCustomer(customer)

	booking := &model.Booking{
		CustomerID:  customer.ID,
		ServiceID:   svc.ID,
		ProviderID:  provider.ID,
		BookingDate: model.NewDate(2026, time.March, 2),
		BookingTime: model.NewTimeOfDay(10, 0),
	}
	booking.ID = uuid.New()
	return fixture{store: store, booking: booking, userID: userID, provider: provider}
}

func TestEmitter_NotifyProviderOfBooking(t *testing.T) {
	f := newFixture(true)
	e := NewEmitter(f.store.Notifications(), f.store.Directory(), nil)

	require.NoError(t, e.NotifyProviderOfBooking(context.Background(), f.booking))
	require.NoError(t, e.NotifyProviderOfBooking(context.Background(), f.booking))

	notes, err := f.store.Notifications().ListByUser(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, notes, 1, "repeat emission is deduplicated")
	assert.Equal(t, model.NotificationTypeBooking, notes[0].Type)
	assert.Equal(t, f.booking.ID, notes[0].ReferenceID)
	assert.False(t, notes[0].IsRead)
	assert.Equal(t, "New booking from Ana Reyes for Haircut on 2026-03-02 at 10:00", notes[0].Message)
}

func TestEmitter_SkipsProviderWithoutUser(t *testing.T) {
	f := newFixture(false)
	repo := new(mockNotificationRepo)
	e := NewEmitter(repo, f.store.Directory(), nil)

	require.NoError(t, e.NotifyProviderOfBooking(context.Background(), f.booking))
	repo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestEmitter_StorageFailureIsUpstream(t *testing.T) {
	f := newFixture(true)
	repo := new(mockNotificationRepo)
	repo.On("CreateIfAbsent", mock.Anything, mock.AnythingOfType("*model.Notification")).
		Return(false, stderrors.New("connection reset"))
	e := NewEmitter(repo, f.store.Directory(), nil)

	err := e.NotifyProviderOfBooking(context.Background(), f.booking)
	require.Error(t, err)
	assert.Equal(t, errors.ErrUpstreamUnavailable, errors.CodeOf(err))
	repo.AssertExpectations(t)
}

func TestEmitter_FallsBackWhenCustomerMissing(t *testing.T) {
	f := newFixture(true)
	f.booking.CustomerID = uuid.New()
	e := NewEmitter(f.store.Notifications(), f.store.Directory(), nil)

	require.NoError(t, e.NotifyProviderOfBooking(context.Background(), f.booking))

	notes, err := f.store.Notifications().ListByUser(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "New booking from A customer for Haircut")
}
