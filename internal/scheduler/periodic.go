package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the sequencer and assignment retry tasks on their cron
// specs. Workers on any host pick them up; asynq keeps one enqueue per tick.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})

	followups, err := NewFollowupsProcessTask(FollowupsProcessPayload{TriggeredBy: "periodic"})
	if err != nil {
		return nil, err
	}
	if _, err := s.Register(cfg.GetFollowupCron(), followups, asynq.Queue(queue), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("register %s: %w", TaskFollowupsProcess, err)
	}

	retry, err := NewAssignmentsRetryTask(AssignmentsRetryPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := s.Register(cfg.GetAssignmentRetryCron(), retry, asynq.Queue(queue), asynq.MaxRetry(0)); err != nil {
		return nil, fmt.Errorf("register %s: %w", TaskAssignmentsRetry, err)
	}

	return &Periodic{scheduler: s, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}
	if err := p.scheduler.Start(); err != nil {
		p.log.Error("periodic scheduler failed to start", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
