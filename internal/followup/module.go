// Package followup wires the follow-up sequencer: sequence definitions,
// per-lead executions and the batch that advances them.
package followup

import (
	"time"

	"leadflow_backend/internal/dispatch"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followup/cyclelock"
	"leadflow_backend/internal/followup/handler"
	"leadflow_backend/internal/followup/repository"
	"leadflow_backend/internal/followup/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the follow-up bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the sequencer against Postgres and subscribes it to lead
// lifecycle events. locker may be nil.
func NewModule(
	pool *pgxpool.Pool,
	cfg config.FollowupConfig,
	dispatcher service.Dispatcher,
	locker cyclelock.Locker,
	counter handler.StatusCounter,
	eventBus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	loc, err := time.LoadLocation(cfg.GetFollowupDefaultTimezone())
	if err != nil {
		loc = time.UTC
	}

	opts := service.Options{
		BatchSize: cfg.GetFollowupBatchSize(),
		Workers:   cfg.GetFollowupWorkers(),
		LeaseTTL:  cfg.GetFollowupLeaseTTL(),
		Location:  loc,
	}
	if b, ok := dispatcher.(interface{ Budget() time.Duration }); ok {
		opts.SendBudget = b.Budget()
	}

	svc := service.New(repository.New(pool), dispatcher, locker, eventBus, log, opts)
	svc.SubscribeLeadClosure(eventBus)

	return &Module{
		handler: handler.New(svc, counter, val),
		service: svc,
	}
}

// Service returns the follow-up service for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followups"
}

// RegisterRoutes mounts follow-up routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Trigger.POST("/process-followups", m.handler.Process)
	ctx.Trigger.GET("/process-followups", m.handler.Status)

	group := ctx.Protected.Group("/followups")
	group.POST("/sequences", httpkit.RequireRole(httpkit.RoleAdmin), m.handler.CreateSequence)
	group.GET("/sequences", m.handler.ListSequences)
	group.POST("/executions", m.handler.Enroll)
	group.GET("/executions", m.handler.ListExecutions)
	group.GET("/executions/:id", m.handler.GetExecution)
	group.POST("/executions/:id/cancel", m.handler.Cancel)
}

var (
	_ apphttp.Module     = (*Module)(nil)
	_ service.Dispatcher = (*dispatch.Router)(nil)
)
