// Package retention runs the background prune loop that enforces the
// event-store retention window.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/nudge/internal/metrics"
	"github.com/kalambet/nudge/internal/storage"
)

// Worker periodically prunes the store until its context is cancelled.
type Worker struct {
	store    storage.Pruner
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewWorker creates a Worker. If interval is <= 0, it defaults to one hour.
// metrics may be nil.
func NewWorker(store storage.Pruner, interval time.Duration, m *metrics.Metrics) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		store:    store,
		interval: interval,
		logger:   slog.Default(),
		metrics:  m,
	}
}

// Run prunes on the configured interval until ctx is cancelled. Pruning is
// best effort: an error is logged and the loop continues. Cancellation
// interrupts the current sleep promptly so shutdown is never blocked.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single prune pass.
func (w *Worker) RunOnce(ctx context.Context) {
	stats, err := w.store.Prune(ctx)
	if err != nil {
		w.logger.Error("prune failed", "error", err)
		return
	}
	w.metrics.PruneRun(stats.Events, stats.Actions)
	w.logger.Info("prune completed", "events_removed", stats.Events, "actions_removed", stats.Actions)
}
