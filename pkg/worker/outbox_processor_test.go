package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(ctx, channel)
	return args.Get(0).(<-chan []byte), args.Error(1)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		Lease:         time.Minute,
		RetryAttempts: 2,
		RetryDelay:    time.Second,
		MaxRetryDelay: time.Minute,
	}
}

func seedEvent(t *testing.T, store *memory.Store) *model.OutboxEvent {
	t.Helper()
	b := &model.Booking{CustomerID: uuid.New(), ProviderID: uuid.New(), ServiceID: uuid.New()}
	b.ID = uuid.New()
	event, err := model.NewBookingEvent(model.EventBookingCreated, b)
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(context.Background(), event))
	return event
}

func TestOutboxProcessor_DeliversToHandlerAndBroker(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	event := seedEvent(t, store)

	broker := messaging.NewMemoryBroker()
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := broker.Subscribe(subCtx, model.EventBookingCreated)
	require.NoError(t, err)

	p := NewOutboxProcessor(store.Outbox(), broker, testConfig(), logger.Nop(), metrics.NewNop())
	var handled []uuid.UUID
	p.Handle(model.EventBookingCreated, func(ctx context.Context, e *model.OutboxEvent) error {
		var payload model.BookingEvent
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		handled = append(handled, payload.BookingID)
		return nil
	})

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, handled, 1)

	select {
	case raw := <-ch:
		var msg struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, event.ID.String(), msg.ID)
		assert.Equal(t, model.EventBookingCreated, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("message was not published")
	}

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "processed events are not claimed again")
}

func TestOutboxProcessor_RetryThenFail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedEvent(t, store)

	broker := new(mockBroker)
	broker.On("Publish", mock.Anything, model.EventBookingCreated, mock.AnythingOfType("messaging.Message")).
		Return(stderrors.New("redis unavailable"))

	p := NewOutboxProcessor(store.Outbox(), broker, testConfig(), logger.Nop(), metrics.NewNop())

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "retry is scheduled in the future")

	p.now = func() time.Time { return time.Now().Add(time.Hour) }
	store.SetClock(func() time.Time { return time.Now().Add(time.Hour) })
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "event is failed after RetryAttempts deliveries")
	broker.AssertExpectations(t)
}

func TestOutboxProcessor_HandlerErrorSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedEvent(t, store)

	p := NewOutboxProcessor(store.Outbox(), nil, testConfig(), logger.Nop(), metrics.NewNop())
	calls := 0
	p.Handle(model.EventBookingCreated, func(ctx context.Context, e *model.OutboxEvent) error {
		calls++
		if calls == 1 {
			return stderrors.New("notification store down")
		}
		return nil
	})

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	store.SetClock(func() time.Time { return time.Now().Add(time.Hour) })
	n, err = p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, calls)
}

func TestOutboxProcessor_RetryDelay(t *testing.T) {
	p := NewOutboxProcessor(memory.NewStore().Outbox(), nil, testConfig(), logger.Nop(), metrics.NewNop())

	assert.Equal(t, time.Second, p.retryDelay(0))
	assert.Equal(t, 4*time.Second, p.retryDelay(2))
	assert.Equal(t, time.Minute, p.retryDelay(20))
}

func TestNewOutboxProcessor_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(memory.NewStore().Outbox(), nil, cfg, logger.Nop(), metrics.NewNop())
	})
}
