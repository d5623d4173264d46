package workers

import (
	"context"
	"time"

	"github.com/pkritskov/shellsync/internal/netmon"
	"github.com/pkritskov/shellsync/internal/service"
)

// SyncWorker runs the periodic background sync job.
type SyncWorker struct {
	job      *service.SyncJob
	interval time.Duration
}

func NewSyncWorker(job *service.SyncJob, interval time.Duration) *SyncWorker {
	return &SyncWorker{job: job, interval: interval}
}

func (w *SyncWorker) Run(ctx context.Context) {
	w.job.Start(ctx, w.interval)
}

// ProberWorker runs the connectivity prober that feeds the network monitor.
type ProberWorker struct {
	prober *netmon.Prober
}

func NewProberWorker(prober *netmon.Prober) *ProberWorker {
	return &ProberWorker{prober: prober}
}

func (w *ProberWorker) Run(ctx context.Context) {
	go w.prober.Run(ctx)
}
