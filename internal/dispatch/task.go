package dispatch

import (
	"context"

	"leadflow_backend/platform/logger"
)

// TaskSender records internal tasks for the closer. Tasks are surfaced through
// the execution log, so delivery is a structured log line.
type TaskSender struct {
	log *logger.Logger
}

func NewTaskSender(log *logger.Logger) *TaskSender {
	if log == nil {
		log = logger.Nop()
	}
	return &TaskSender{log: log}
}

func (s *TaskSender) Send(ctx context.Context, msg Message) error {
	s.log.WithContext(ctx).Info("follow-up task created",
		"leadId", msg.To.LeadID,
		"executionId", msg.ExecutionID,
		"title", msg.Subject,
		"content", msg.Body,
	)
	return nil
}
