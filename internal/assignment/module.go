package assignment

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignment bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule wires the assignment service against Postgres and subscribes it
// to lead lifecycle events. queue may be nil.
func NewModule(pool *pgxpool.Pool, roster Roster, eventBus events.Bus, queue RetryQueue, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), roster, eventBus, log)
	svc.SubscribeReleases(eventBus)
	return &Module{
		handler: NewHandler(svc, queue),
		service: svc,
	}
}

// Service returns the assignment service for the lead pipeline and scheduler.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// RegisterRoutes mounts assignment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Trigger.POST("/assignments/retry", m.handler.Retry)
}

var _ apphttp.Module = (*Module)(nil)
