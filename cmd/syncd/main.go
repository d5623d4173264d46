package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pkritskov/shellsync/internal/adapter"
	"github.com/pkritskov/shellsync/internal/audit"
	"github.com/pkritskov/shellsync/internal/config"
	"github.com/pkritskov/shellsync/internal/lease"
	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/internal/netmon"
	"github.com/pkritskov/shellsync/internal/service"
	"github.com/pkritskov/shellsync/internal/store"
	"github.com/pkritskov/shellsync/internal/workers"
	"github.com/pkritskov/shellsync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncd")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewConnectSQLite(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect outbox database")
	}
	defer db.Close()

	if err = db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrate outbox database")
	}
	outbox := store.NewOutboxStore(db, log)

	monitor := netmon.NewMonitor(netmon.Policy{AllowExpensiveNetworks: !cfg.Sync.WifiOnly}, log)
	prober, err := netmon.NewProber(monitor, cfg.Remote.BaseURL, models.ConnectionWired, cfg.Sync.Interval/2, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create connectivity prober")
	}

	remote, err := adapter.NewHTTPRemoteRepository(cfg.Remote, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create remote repository")
	}

	engine, err := service.NewSyncEngine(
		cfg.Sync,
		outbox,
		remote,
		monitor,
		lease.NewTimerProvider(cfg.Sync.LeaseWindow, log),
		audit.NewLogSink(log),
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("create sync engine")
	}

	wakes := service.NewWakeRegistry(log)
	wakes.Register(engine)

	job := service.NewSyncJob(engine, monitor, log)

	workers.NewWorkers(
		workers.NewProberWorker(prober),
		workers.NewSyncWorker(job, cfg.Sync.Interval),
		workers.NewHousekeepingWorker(outbox, cfg.Sync.Interval, cfg.Sync, log),
	).Run(ctx)

	log.Info().Msg("shellsync daemon started")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	engine.Cancel()
	job.Stop()
}

func printBuildInfo() {
	fmt.Printf("Build version: %s\n", orNA(buildVersion))
	fmt.Printf("Build date: %s\n", orNA(buildDate))
	fmt.Printf("Build commit: %s\n", orNA(buildCommit))
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
