// Package app assembles the services shared by the api and worker binaries.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

// NewLogger builds the application logger and points zerolog's global
// logger, used by the HTTP middleware, at the same output.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Level))
	log.Logger = *l.Zerolog()
	return l
}

// OpenStore returns the configured storage driver and a function that
// releases it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, l *logger.Logger) (repository.Store, func() error, error) {
	switch cfg.Driver {
	case "memory":
		l.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() error { return nil }, nil
	case "postgres", "":
		db, err := postgres.NewDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, err
			}
			l.Info("Database migrations applied")
		}
		return postgres.NewStore(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewBroker connects to Redis when it is enabled. Without Redis it returns a
// nil broker and outbox events are only handled locally.
func NewBroker(cfg config.RedisConfig, l *logger.Logger) (messaging.Broker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return redis.NewRedisBroker(cfg.ToBrokerConfig(), l.Zerolog())
}

// NewOutboxProcessor builds the processor and registers the event handlers
// that run before events are published.
func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	cfg config.OutboxConfig,
	notifier notification.Emitter,
	l *logger.Logger,
	m *metrics.Metrics,
) *worker.OutboxProcessor {
	p := worker.NewOutboxProcessor(store.Outbox(), broker, cfg.ToWorkerConfig(), l, m)
	p.Handle(model.EventBookingCreated, NotifyProviderHandler(store.Bookings(), notifier))
	return p
}

// NotifyProviderHandler delivers the provider notification for a
// booking.created event. The notification store drops repeats, so an event
// already notified during creation is harmless.
func NotifyProviderHandler(bookings repository.BookingRepository, notifier notification.Emitter) worker.EventHandler {
	return func(ctx context.Context, event *model.OutboxEvent) error {
		var payload model.BookingEvent
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
		}

		b, err := bookings.Get(ctx, payload.BookingID)
		if errors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return notifier.NotifyProviderOfBooking(ctx, b)
	}
}
