package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/dispatch"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followup"
	"leadflow_backend/internal/followup/cyclelock"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/stats"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", func(ctx context.Context) error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var locker cyclelock.Locker
	if cfg.GetRedisURL() != "" {
		redisLocker, err := cyclelock.NewFromURL(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			log.Error("failed to initialize followup cycle lock", "error", err)
			panic("failed to initialize followup cycle lock: " + err.Error())
		}
		defer func() { _ = redisLocker.Close() }()
		locker = redisLocker
	}

	// Worker-side wiring (no HTTP handlers required).
	statsModule := stats.NewModule(pool)
	assignmentModule := assignment.NewModule(pool, statsModule.Service(), eventBus, nil, log)
	followupModule := followup.NewModule(pool, cfg, dispatch.New(cfg, log), locker, statsModule.Service(), eventBus, val, log)

	jobs := scheduler.NewJobs(followupModule.Service(), assignmentModule.Service(), log)

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running jobs with the in-process cron runner")
		runner, err := scheduler.NewCronRunner(ctx, cfg, jobs, log)
		if err != nil {
			log.Error("failed to initialize cron runner", "error", err)
			panic("failed to initialize cron runner: " + err.Error())
		}
		runner.Run(ctx)
		return
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, jobs, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, fn func(context.Context) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(4, retry.NewExponential(2*time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
