package stats

import (
	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler exposes the reporting endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Closers handles GET /api/v1/stats/closers
func (h *Handler) Closers(c *gin.Context) {
	orgID, err := httpkit.OrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	summary, err := h.svc.Team(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

// Followups handles GET /api/v1/stats/followups
func (h *Handler) Followups(c *gin.Context) {
	orgID, err := httpkit.OptionalOrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	summary, err := h.svc.Followups(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}
