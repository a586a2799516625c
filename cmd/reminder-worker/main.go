package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/caresched/telehealth-scheduling/internal/availability"
	"github.com/caresched/telehealth-scheduling/internal/booking"
	"github.com/caresched/telehealth-scheduling/internal/config"
	"github.com/caresched/telehealth-scheduling/internal/db"
	"github.com/caresched/telehealth-scheduling/internal/logging"
	redisclient "github.com/caresched/telehealth-scheduling/internal/redis"
	"github.com/caresched/telehealth-scheduling/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("reminder-worker", "dev")
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("reminder-worker", cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("lead", cfg.ReminderLead).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	availStore := availability.NewPgStore(pgPool)
	repo := booking.NewPgRepository(pgPool)
	resolver := schedule.NewResolver(availStore, repo)
	// The worker never books, so the in-process locker is enough here.
	engine := booking.NewEngine(repo, resolver, redisclient.NewLocalLocker(), booking.LogNotifier{}, booking.AllowAllEntitlement())

	// Run once at startup
	runOnce(rootCtx, engine, cfg.ReminderLead)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, engine, cfg.ReminderLead)
		}
	}
}

func runOnce(ctx context.Context, engine *booking.Engine, lead time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := engine.SendDueReminders(runCtx, start, lead); err != nil {
		log.Error().Err(err).Msg("reminder run error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("reminder run complete")
}
