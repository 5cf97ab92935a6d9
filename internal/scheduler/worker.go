package scheduler

import (
	"context"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   *Jobs
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, jobs *Jobs, log *logger.Logger) (*Worker, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		jobs:   jobs,
		log:    log,
	}
	w.mux.HandleFunc(TaskFollowupsProcess, w.handleFollowupsProcess)
	w.mux.HandleFunc(TaskAssignmentsRetry, w.handleAssignmentsRetry)

	return w, nil
}

func (w *Worker) handleFollowupsProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupsProcessPayload(task)
	if err != nil {
		return err
	}
	if payload.TriggeredBy != "" {
		w.log.Debug("followup task received", "triggeredBy", payload.TriggeredBy)
	}
	return w.jobs.RunFollowups(ctx)
}

func (w *Worker) handleAssignmentsRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAssignmentsRetryPayload(task)
	if err != nil {
		return err
	}
	return w.jobs.RunAssignmentRetry(ctx, payload.Limit)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
