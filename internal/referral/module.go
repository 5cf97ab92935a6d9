// Package referral awards points to mentees whose referrals become leads.
package referral

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the referral bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the referral module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), log)
	return &Module{handler: NewHandler(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "referral"
}

// RegisterRoutes mounts the referral routes on the trigger group; they are
// called by automations as well as admins.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Trigger.POST("/indicacao-pontos", m.handler.Award)
	ctx.Trigger.GET("/indicacao-pontos", m.handler.Pending)
}

var _ apphttp.Module = (*Module)(nil)
