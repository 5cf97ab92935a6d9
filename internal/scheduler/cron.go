package scheduler

import (
	"context"
	"fmt"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// CronRunner runs the jobs in-process when Redis is not configured. A job
// still running when its next tick fires is skipped.
type CronRunner struct {
	cron *cron.Cron
	log  *logger.Logger
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func NewCronRunner(ctx context.Context, cfg config.SchedulerConfig, jobs *Jobs, log *logger.Logger) (*CronRunner, error) {
	if log == nil {
		log = logger.Nop()
	}
	clog := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	if _, err := c.AddFunc(cfg.GetFollowupCron(), func() { _ = jobs.RunFollowups(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", TaskFollowupsProcess, err)
	}
	if _, err := c.AddFunc(cfg.GetAssignmentRetryCron(), func() { _ = jobs.RunAssignmentRetry(ctx, 0) }); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", TaskAssignmentsRetry, err)
	}

	return &CronRunner{cron: c, log: log}, nil
}

// Entries reports how many jobs are scheduled.
func (r *CronRunner) Entries() int {
	return len(r.cron.Entries())
}

func (r *CronRunner) Run(ctx context.Context) {
	r.cron.Start()
	r.log.Info("cron runner started", "jobs", r.Entries())
	<-ctx.Done()
	<-r.cron.Stop().Done()
}
