package scheduler

import (
	"context"

	"leadflow_backend/internal/assignment"
	followupservice "leadflow_backend/internal/followup/service"
	"leadflow_backend/platform/logger"
)

const defaultRetryLimit = 100

// FollowupRunner runs one sequencer batch.
type FollowupRunner interface {
	ProcessDue(ctx context.Context) (followupservice.BatchReport, error)
}

// AssignmentRetrier runs one assignment retry pass.
type AssignmentRetrier interface {
	RetryUnassigned(ctx context.Context, limit int) (assignment.RetrySummary, error)
}

// Jobs holds the periodic work shared by the asynq worker and the cron
// fallback.
type Jobs struct {
	followups   FollowupRunner
	assignments AssignmentRetrier
	retryLimit  int
	log         *logger.Logger
}

func NewJobs(followups FollowupRunner, assignments AssignmentRetrier, log *logger.Logger) *Jobs {
	if log == nil {
		log = logger.Nop()
	}
	return &Jobs{
		followups:   followups,
		assignments: assignments,
		retryLimit:  defaultRetryLimit,
		log:         log,
	}
}

// RunFollowups processes one batch of due executions.
func (j *Jobs) RunFollowups(ctx context.Context) error {
	if j.followups == nil {
		return nil
	}
	report, err := j.followups.ProcessDue(ctx)
	if err != nil {
		j.log.Error("followup job failed", "error", err)
		return err
	}
	if report.Skipped {
		j.log.Debug("followup job skipped, another cycle holds the lock")
	}
	return nil
}

// RunAssignmentRetry assigns queued leads. limit <= 0 uses the default.
func (j *Jobs) RunAssignmentRetry(ctx context.Context, limit int) error {
	if j.assignments == nil {
		return nil
	}
	if limit <= 0 {
		limit = j.retryLimit
	}
	if _, err := j.assignments.RetryUnassigned(ctx, limit); err != nil {
		j.log.Error("assignment retry job failed", "error", err)
		return err
	}
	return nil
}
