package workers

import (
	"context"
	"time"

	"github.com/pkritskov/shellsync/internal/config"
	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/internal/store"
)

// HousekeepingWorker reconciles the outbox in the background: operations
// orphaned in the inProgress state by a crash are returned to pending, and
// delivered operations past the retention window are purged.
type HousekeepingWorker struct {
	outbox   store.OutboxStore
	interval time.Duration
	cfg      config.Sync
	logger   *logger.Logger
}

func NewHousekeepingWorker(outbox store.OutboxStore, interval time.Duration, cfg config.Sync, log *logger.Logger) *HousekeepingWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HousekeepingWorker{outbox: outbox, interval: interval, cfg: cfg, logger: log}
}

func (w *HousekeepingWorker) Run(ctx context.Context) {
	go func() {
		// reconcile immediately on startup: a crash during a previous pass
		// may have left operations stuck in inProgress
		w.sweep(ctx)

		t := time.NewTicker(w.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				w.sweep(ctx)
			}
		}
	}()
}

func (w *HousekeepingWorker) sweep(ctx context.Context) {
	now := time.Now()

	// an operation still inProgress past the lease window can no longer be
	// mid-flight; its pass is gone
	staleCutoff := now.Add(-w.staleAfter())
	requeued, err := w.outbox.RequeueStale(ctx, staleCutoff)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to requeue stale operations")
	} else if requeued > 0 {
		w.logger.Info().Int64("requeued", requeued).Msg("requeued stale in-progress operations")
	}

	if w.cfg.CompletedRetention > 0 {
		purged, err := w.outbox.PurgeCompleted(ctx, now.Add(-w.cfg.CompletedRetention))
		if err != nil {
			w.logger.Warn().Err(err).Msg("failed to purge completed operations")
		} else if purged > 0 {
			w.logger.Debug().Int64("purged", purged).Msg("purged completed operations")
		}
	}
}

func (w *HousekeepingWorker) staleAfter() time.Duration {
	if w.cfg.LeaseWindow > 0 {
		return 2 * w.cfg.LeaseWindow
	}
	return 10 * time.Minute
}
