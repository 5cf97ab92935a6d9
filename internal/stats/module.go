package stats

import (
	apphttp "leadflow_backend/internal/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the stats bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the stats module.
func NewModule(pool *pgxpool.Pool) *Module {
	svc := NewService(NewRepository(pool))
	return &Module{
		handler: NewHandler(svc),
		service: svc,
	}
}

// Service returns the stats service; its Snapshot feeds assignment.
func (m *Module) Service() *Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "stats"
}

// RegisterRoutes mounts stats routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/stats")
	group.GET("/closers", m.handler.Closers)
	group.GET("/followups", m.handler.Followups)
}

var _ apphttp.Module = (*Module)(nil)
