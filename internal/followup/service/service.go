// Package service runs follow-up batches: claim due executions, deliver
// their current step inside the send window and write the new state back.
package service

import (
	"context"
	"strconv"
	"time"

	"leadflow_backend/internal/dispatch"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followup/cyclelock"
	"leadflow_backend/internal/followup/domain"
	"leadflow_backend/internal/followup/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result statuses reported per execution.
const (
	ResultSent      = "sent"
	ResultFailed    = "failed"
	ResultCompleted = "completed"
	ResultPostponed = "postponed"
	ResultCancelled = "cancelled"
	ResultSkipped   = "skipped"
	ResultError     = "error"
)

// leaseMargin is the lease left over for the write-back after a send that
// used its whole budget.
const leaseMargin = 15 * time.Second

// Dispatcher delivers one rendered step.
type Dispatcher interface {
	Send(ctx context.Context, msg dispatch.Message) dispatch.Result
}

// ItemResult is the outcome for one execution in a batch.
type ItemResult struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	NextStep    string    `json:"next_step,omitempty"`
}

// BatchStats counts results by status.
type BatchStats struct {
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
	Postponed int `json:"postponed"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s *BatchStats) add(status string) {
	switch status {
	case ResultSent:
		s.Sent++
	case ResultFailed:
		s.Failed++
	case ResultCompleted:
		s.Completed++
	case ResultPostponed:
		s.Postponed++
	case ResultCancelled:
		s.Cancelled++
	case ResultSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
}

// BatchReport summarizes one batch run. Skipped is set when another process
// held the cycle lock and nothing was claimed.
type BatchReport struct {
	BatchID   string       `json:"batch_id,omitempty"`
	Processed int          `json:"processed"`
	Stats     BatchStats   `json:"stats"`
	Results   []ItemResult `json:"results"`
	Skipped   bool         `json:"skipped"`
}

// Options tune a batch run.
type Options struct {
	BatchSize int
	Workers   int
	LeaseTTL  time.Duration
	// SendBudget is the longest one delivery may take. The lease renewed
	// before each send always outlasts it.
	SendBudget time.Duration
	// ParkFor keeps an undecodable execution out of claims.
	ParkFor time.Duration
	// Location is the send-window zone for sequences without their own.
	Location *time.Location
	Clock    func() time.Time
}

// Service runs follow-up batches and manages enrollments.
type Service struct {
	store      repository.Store
	dispatcher Dispatcher
	locker     cyclelock.Locker
	eventBus   events.Bus
	log        *logger.Logger
	opts       Options
}

// New creates a follow-up service. A nil locker disables the cross-process
// cycle lock; row leases still keep concurrent batches apart.
func New(store repository.Store, dispatcher Dispatcher, locker cyclelock.Locker, eventBus events.Bus, log *logger.Logger, opts Options) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 2 * time.Minute
	}
	if opts.SendBudget > 0 && opts.LeaseTTL < opts.SendBudget+leaseMargin {
		opts.LeaseTTL = opts.SendBudget + leaseMargin
	}
	if opts.ParkFor <= 0 {
		opts.ParkFor = time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if locker == nil {
		locker = cyclelock.Noop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		locker:     locker,
		eventBus:   eventBus,
		log:        log,
		opts:       opts,
	}
}

// ProcessDue runs one batch. A store outage while claiming is returned as
// an error; everything that happens to individual executions is reported
// in the results.
func (s *Service) ProcessDue(ctx context.Context) (BatchReport, error) {
	started := time.Now()

	release, ok, err := s.locker.Acquire(ctx, s.opts.LeaseTTL)
	if err != nil {
		s.log.WithContext(ctx).Warn("followup cycle lock unavailable, relying on row leases", "error", err)
		release, ok = func() {}, true
	}
	if !ok {
		s.log.WithContext(ctx).Info("followup batch skipped, another cycle is running")
		return BatchReport{Results: []ItemResult{}, Skipped: true}, nil
	}
	defer release()

	batchID := uuid.New()
	ctx = context.WithValue(ctx, logger.BatchIDKey, batchID.String())
	log := s.log.WithContext(ctx)

	claimed, err := s.store.ClaimDue(ctx, repository.ClaimParams{
		Now:   s.opts.Clock(),
		Limit: s.opts.BatchSize,
		Lease: s.opts.LeaseTTL,
		Token: batchID,
	})
	if err != nil {
		log.DatabaseError("claim due followups", err)
		return BatchReport{}, apperr.Unavailable("could not load due follow-ups", err)
	}

	results := make([]ItemResult, len(claimed))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, item := range claimed {
		g.Go(func() error {
			results[i] = s.processOne(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{BatchID: batchID.String(), Processed: len(results), Results: results}
	for _, r := range results {
		report.Stats.add(r.Status)
		metrics.FollowupBatchItems.WithLabelValues(r.Status).Inc()
		log.FollowupOutcome(r.ExecutionID.String(), r.Status, r.Message)
	}
	metrics.FollowupBatchDuration.Observe(time.Since(started).Seconds())

	log.Info("followup batch processed",
		"processed", report.Processed,
		"sent", report.Stats.Sent,
		"failed", report.Stats.Failed,
		"completed", report.Stats.Completed,
		"postponed", report.Stats.Postponed,
		"cancelled", report.Stats.Cancelled,
		"skipped", report.Stats.Skipped,
		"errors", report.Stats.Errors,
		"durationMs", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (s *Service) processOne(ctx context.Context, c repository.Claimed) ItemResult {
	exec := c.Execution
	res := ItemResult{ExecutionID: exec.ID}

	if c.Fault != nil {
		return s.parkItem(ctx, c, res)
	}

	step, ok := domain.CurrentStep(exec, c.Sequence)
	if !ok {
		done, err := s.store.Complete(ctx, exec.ID, c.Token)
		if err != nil {
			return s.failItem(ctx, c, res, err)
		}
		if !done {
			res.Status, res.Message = ResultSkipped, "execution changed while claimed"
			return res
		}
		s.publishCompleted(ctx, exec, exec.TotalTouchpoints)
		res.Status, res.Message, res.NextStep = ResultCompleted, "sequence exhausted", ResultCompleted
		return res
	}

	now := s.opts.Clock()
	if !domain.WindowFor(c.Sequence, s.opts.Location).Contains(now) {
		if _, err := s.store.Postpone(ctx, exec.ID, c.Token); err != nil {
			return s.failItem(ctx, c, res, err)
		}
		res.Status, res.Message = ResultPostponed, "outside send window"
		res.NextStep = strconv.Itoa(exec.StepAtual)
		return res
	}

	channel, ok := dispatch.ParseChannel(step.TipoAcao)
	if !ok {
		msg := "unknown action type " + strconv.Quote(step.TipoAcao)
		if _, err := s.store.RecordFailure(ctx, exec.ID, c.Token, msg); err != nil {
			return s.failItem(ctx, c, res, err)
		}
		res.Status, res.Message = ResultFailed, msg
		return res
	}

	// A cancel may have landed after the claim, and the batch-wide lease may
	// be nearly spent by the time this item is reached. Look again and take
	// a fresh lease right before anything leaves the building.
	renewedAt := s.opts.Clock()
	status, held, err := s.store.RenewClaim(ctx, exec.ID, c.Token, renewedAt, renewedAt.Add(s.opts.LeaseTTL))
	if err != nil {
		return s.failItem(ctx, c, res, err)
	}
	if status == domain.StatusCancelled {
		res.Status, res.Message = ResultCancelled, "execution cancelled before dispatch"
		return res
	}
	if !held || !status.Open() {
		res.Status, res.Message = ResultSkipped, "claim no longer held"
		return res
	}

	sendCtx, cancel := s.sendContext(ctx)
	defer cancel()
	values := c.Lead.TemplateValues()
	result := s.dispatcher.Send(sendCtx, dispatch.Message{
		Channel: channel,
		To: dispatch.Recipient{
			LeadID: c.Lead.ID,
			Name:   c.Lead.NomeCompleto,
			Phone:  c.Lead.Telefone,
			Email:  c.Lead.Email,
		},
		Subject:     domain.Render(step.Titulo, values),
		Body:        domain.Render(step.Conteudo, values),
		ExecutionID: exec.ID,
	})
	if !result.Success {
		if _, err := s.store.RecordFailure(ctx, exec.ID, c.Token, result.Error); err != nil {
			return s.failItem(ctx, c, res, err)
		}
		res.Status, res.Message = ResultFailed, result.Error
		res.NextStep = strconv.Itoa(exec.StepAtual)
		return res
	}

	progress := domain.Advance(exec, c.Sequence, step, s.opts.Clock())
	saved, err := s.store.SaveProgress(ctx, repository.ProgressParams{
		ExecutionID: exec.ID,
		SequenceID:  exec.SequenceID,
		Token:       c.Token,
		Progress:    progress,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("followup delivered but progress not saved",
			"executionId", exec.ID, "step", exec.StepAtual, "error", err)
		return s.failItem(ctx, c, res, err)
	}
	if !saved {
		res.Status, res.Message = ResultSkipped, "delivered but claim lost before write-back"
		return res
	}

	res.Status, res.Message = ResultSent, "step "+strconv.Itoa(exec.StepAtual)+" delivered via "+string(channel)
	if progress.Status == domain.StatusCompleted {
		res.NextStep = ResultCompleted
		s.publishCompleted(ctx, exec, progress.TotalTouchpoints)
	} else {
		res.NextStep = strconv.Itoa(progress.StepAtual)
	}
	return res
}

func (s *Service) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.SendBudget <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.SendBudget)
}

// parkItem sets aside an execution whose stored data could not be read so
// it stops taking the head of every batch.
func (s *Service) parkItem(ctx context.Context, c repository.Claimed, res ItemResult) ItemResult {
	msg := c.Fault.Error()
	until := s.opts.Clock().Add(s.opts.ParkFor)
	if _, err := s.store.Park(ctx, c.Execution.ID, c.Token, msg, until); err != nil {
		return s.failItem(ctx, c, res, err)
	}
	s.log.WithContext(ctx).Error("followup execution parked", "executionId", c.Execution.ID, "until", until, "error", msg)
	res.Status, res.Message = ResultError, msg
	return res
}

// failItem reports an infrastructure error and hands the row back so the
// next cycle can pick it up without waiting for the lease to expire.
func (s *Service) failItem(ctx context.Context, c repository.Claimed, res ItemResult, err error) ItemResult {
	if relErr := s.store.ReleaseClaim(context.WithoutCancel(ctx), c.Execution.ID, c.Token); relErr != nil {
		s.log.WithContext(ctx).Warn("release followup claim failed", "executionId", c.Execution.ID, "error", relErr)
	}
	res.Status, res.Message = ResultError, err.Error()
	return res
}

func (s *Service) publishCompleted(ctx context.Context, exec domain.Execution, touchpoints int) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, events.FollowupCompleted{
		BaseEvent:        events.NewBaseEvent(),
		ExecutionID:      exec.ID,
		LeadID:           exec.LeadID,
		SequenceID:       exec.SequenceID,
		TotalTouchpoints: touchpoints,
	})
}
