package referral

import (
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type awardRequest struct {
	LeadID         string `json:"lead_id" validate:"required,uuid"`
	IndicadoPorID  string `json:"indicado_por_id" validate:"omitempty,max=200"`
	ForceReprocess bool   `json:"force_reprocess"`
}

// Handler exposes the referral points endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, validate: val}
}

// Award handles POST /api/v1/indicacao-pontos
func (h *Handler) Award(c *gin.Context) {
	var req awardRequest
	if !httpkit.BindJSON(c, &req, h.validate) {
		return
	}

	result, err := h.svc.Award(c.Request.Context(), AwardRequest{
		LeadID:         uuid.MustParse(req.LeadID),
		IndicadoPorID:  req.IndicadoPorID,
		ForceReprocess: req.ForceReprocess,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Pending handles GET /api/v1/indicacao-pontos
func (h *Handler) Pending(c *gin.Context) {
	report, err := h.svc.Pending(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}
