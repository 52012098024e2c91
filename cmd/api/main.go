package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	bookingHandler "github.com/jwalitptl/booking-api/internal/handler/booking"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	paymentHandler "github.com/jwalitptl/booking-api/internal/handler/payment"
	scheduleHandler "github.com/jwalitptl/booking-api/internal/handler/schedule"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/router"
	bookingService "github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/internal/service/idempotency"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("BOOKING_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal(err, "failed to open storage")
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry, "booking")

	// Initialize services
	slots := schedule.NewStore(store.Schedules())
	guard := idempotency.NewGuard(store.Idempotency(), idempotency.Config{
		Lease:     cfg.Booking.IdempotencyLease,
		Retention: cfg.Booking.IdempotencyRetention,
	})
	notifier := notification.NewEmitter(store.Notifications(), store.Directory(), logger)
	bookingSvc := bookingService.NewService(store, guard, notifier, m, logger, bookingService.Config{
		AutoConfirm: cfg.Booking.AutoConfirm,
	})

	// Initialize middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer))
	healthH := health.NewHandler(map[string]health.Pinger{"database": store}, registry)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	r := router.NewRouter(
		authMiddleware,
		healthH,
		[]router.Handler{paymentHandler.NewHandler(bookingSvc, cfg.Payment.WebhookSecret)},
		[]router.Handler{
			bookingHandler.NewHandler(bookingSvc, authMiddleware),
			scheduleHandler.NewHandler(slots, authMiddleware),
		},
		router.RouterConfig{
			Mode:           cfg.Server.Mode,
			RateLimit:      cfg.RateLimit,
			CORS:           cfg.CORS,
			RequestTimeout: cfg.Server.RequestTimeout,
			MetricsPath:    metricsPath,
			MetricsPrefix:  "booking_http",
			Registerer:     registry,
		},
	)
	r.Setup()

	if cfg.Outbox.Inline {
		broker, err := app.NewBroker(cfg.Redis, logger)
		if err != nil {
			logger.Fatal(err, "failed to connect to Redis")
		}
		if broker != nil {
			defer broker.Close()
		}

		processor := app.NewOutboxProcessor(store, broker, cfg.Outbox, notifier, logger, m)
		go processor.Start(ctx)
		go worker.NewIdempotencyCleanupWorker(store.Idempotency(), cfg.Booking.IdempotencyRetention, cfg.Outbox.CleanupInterval, logger, m).Start(ctx)
		go worker.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, logger, m).Start(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}

	logger.Info("Server exited properly")
}
