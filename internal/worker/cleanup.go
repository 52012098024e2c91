package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// CleanupFunc deletes rows older than before and returns how many it removed.
type CleanupFunc func(ctx context.Context, before time.Time) (int64, error)

// CleanupWorker periodically enforces a retention window on one table.
type CleanupWorker struct {
	table     string
	cleanup   CleanupFunc
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewCleanupWorker(table string, fn CleanupFunc, retention, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *CleanupWorker {
	return &CleanupWorker{
		table:     table,
		cleanup:   fn,
		retention: retention,
		interval:  interval,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// NewIdempotencyCleanupWorker drops completed keys past retention and
// abandoned PROCESSING keys.
func NewIdempotencyCleanupWorker(repo repository.IdempotencyRepository, retention, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *CleanupWorker {
	return NewCleanupWorker("idempotency_keys", repo.DeleteExpired, retention, interval, log, m)
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *CleanupWorker {
	return NewCleanupWorker("outbox_events", repo.DeleteProcessedBefore, retention, interval, log, m)
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error(err, "Cleanup failed", "table", w.table)
			}
		}
	}
}

func (w *CleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().Add(-w.retention)

	rows, err := w.cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup %s: %w", w.table, err)
	}

	if rows > 0 {
		w.metrics.CleanupDeleted.WithLabelValues(w.table).Add(float64(rows))
		w.logger.Info("Cleaned up expired rows",
			"table", w.table,
			"rows", rows,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return rows, nil
}
