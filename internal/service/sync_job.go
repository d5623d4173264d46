package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/internal/netmon"
	"github.com/pkritskov/shellsync/models"
)

// Syncer is the slice of the engine the background job needs.
type Syncer interface {
	Sync(ctx context.Context) (models.SyncResult, error)
}

// SyncJob triggers sync passes in the background: on a periodic ticker and
// on every transition back to an eligible network. The job is idle until
// Start is called.
type SyncJob struct {
	engine  Syncer
	monitor netmon.Monitor
	logger  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncJob(engine Syncer, monitor netmon.Monitor, log *logger.Logger) *SyncJob {
	return &SyncJob{engine: engine, monitor: monitor, logger: log}
}

// Start stops any previously running job, then launches a background
// goroutine that runs a sync pass every interval and immediately after the
// network becomes eligible again. If interval is zero or negative it
// defaults to 5 minutes. The goroutine exits when ctx is cancelled or Stop
// is called.
func (j *SyncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()

		updates, unsubscribe := j.monitor.Subscribe()
		defer unsubscribe()

		t := time.NewTicker(interval)
		defer t.Stop()

		wasEligible := j.monitor.ShouldAllowSync()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.runOnce(jobCtx)
			case _, ok := <-updates:
				if !ok {
					return
				}
				eligible := j.monitor.ShouldAllowSync()
				if eligible && !wasEligible {
					j.logger.Info().Msg("network became eligible, triggering sync")
					j.runOnce(jobCtx)
				}
				wasEligible = eligible
			}
		}
	}()
}

func (j *SyncJob) runOnce(ctx context.Context) {
	_, err := j.engine.Sync(ctx)
	switch {
	case err == nil,
		errors.Is(err, ErrNothingToSync),
		errors.Is(err, ErrSyncInProgress),
		errors.Is(err, ErrSyncNotAllowed):
		// quiet outcomes for a background trigger
	default:
		j.logger.Err(err).Msg("background sync pass failed")
	}
}

// Stop cancels the background goroutine and blocks until it has exited.
// Safe to call when the job is not running.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
