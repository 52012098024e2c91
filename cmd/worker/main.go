package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

func setupHealthCheck(port int, h *health.Handler, logger *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(engine)
	engine.GET("/metrics", h.MetricsHandler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	configPath := flag.String("config", os.Getenv("BOOKING_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := app.NewLogger(cfg.Logging)
	logger = logger.WithFields(map[string]interface{}{"worker_id": workerID()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal(err, "Failed to open storage")
	}
	defer closeStore()

	broker, err := app.NewBroker(cfg.Redis, logger)
	if err != nil {
		logger.Fatal(err, "Failed to create Redis broker")
	}
	if broker != nil {
		defer broker.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry, "booking_worker")

	notifier := notification.NewEmitter(store.Notifications(), store.Directory(), logger)
	processor := app.NewOutboxProcessor(store, broker, cfg.Outbox, notifier, logger, m)
	cleanups := []*worker.CleanupWorker{
		worker.NewIdempotencyCleanupWorker(store.Idempotency(), cfg.Booking.IdempotencyRetention, cfg.Outbox.CleanupInterval, logger, m),
		worker.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, logger, m),
	}

	healthSrv := setupHealthCheck(cfg.Worker.HealthPort, health.NewHandler(map[string]health.Pinger{"database": store}, registry), logger)

	var wg sync.WaitGroup
	wg.Add(1 + len(cleanups))
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	for _, c := range cleanups {
		go func(c *worker.CleanupWorker) {
			defer wg.Done()
			c.Start(ctx)
		}(c)
	}

	logger.Info("Worker started", "health_port", cfg.Worker.HealthPort)
	<-ctx.Done()
	logger.Info("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Health check server forced to shutdown")
	}
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("worker-%s-%d", hostname, time.Now().UnixNano())
}
