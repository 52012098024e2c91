package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

func TestOpenStore(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: "memory"}, logger.Nop())
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, closeFn())

	_, _, err = OpenStore(context.Background(), config.DatabaseConfig{Driver: "sqlite"}, logger.Nop())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestNewBroker_Disabled(t *testing.T) {
	broker, err := NewBroker(config.RedisConfig{}, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, broker)
}

func TestOutboxNotifiesProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	providerID, userID, customerID := uuid.New(), uuid.New(), uuid.New()
	store.AddProvider(model.Provider{ID: providerID, UserID: &userID})
	store.AddCustomer(model.Customer{ID: customerID, FirstName: "Ana"})
	svc := model.Service{ID: uuid.New(), ProviderID: providerID, Name: "Massage", Price: decimal.NewFromInt(500)}
	store.AddService(svc)

	b := &model.Booking{
		CustomerID:    customerID,
		ServiceID:     svc.ID,
		ProviderID:    providerID,
		BookingDate:   model.NewDate(2026, 3, 2),
		BookingTime:   model.NewTimeOfDay(10, 0),
		Status:        model.BookingStatusPending,
		TotalCost:     svc.Price,
		PaymentMethod: model.PaymentMethodCash,
	}
	require.NoError(t, store.Bookings().Create(ctx, b))
	event, err := model.NewBookingEvent(model.EventBookingCreated, b)
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(ctx, event))

	orphan := &model.Booking{CustomerID: customerID, ProviderID: providerID}
	orphan.ID = uuid.New()
	gone, err := model.NewBookingEvent(model.EventBookingCreated, orphan)
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(ctx, gone))

	cfg := config.OutboxConfig{BatchSize: 10, PollInterval: 1, RetryAttempts: 3, RetryDelay: 1}
	notifier := notification.NewEmitter(store.Notifications(), store.Directory(), logger.Nop())
	p := NewOutboxProcessor(store, nil, cfg, notifier, logger.Nop(), metrics.NewNop())

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "events for deleted bookings are dropped")

	notes, err := store.Notifications().ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, b.ID, notes[0].ReferenceID)
}
