package handler

import (
	"context"

	"leadflow_backend/internal/followup/service"
	"leadflow_backend/internal/followup/transport"
	"leadflow_backend/internal/stats"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatusCounter reports execution counts per status.
type StatusCounter interface {
	ExecutionCounts(ctx context.Context, organizationID *uuid.UUID) (stats.FollowupSummary, error)
}

// Handler handles follow-up HTTP requests.
type Handler struct {
	svc      *service.Service
	counter  StatusCounter
	validate *validator.Validator
}

// New creates a new follow-up handler.
func New(svc *service.Service, counter StatusCounter, val *validator.Validator) *Handler {
	return &Handler{svc: svc, counter: counter, validate: val}
}

// Process handles POST /api/v1/process-followups
func (h *Handler) Process(c *gin.Context) {
	report, err := h.svc.ProcessDue(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}

// Status handles GET /api/v1/process-followups
func (h *Handler) Status(c *gin.Context) {
	orgID, err := httpkit.OptionalOrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	summary, err := h.counter.ExecutionCounts(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.StatusResponse{Success: true, Stats: summary.Counts, Total: summary.Total})
}

// CreateSequence handles POST /api/v1/followups/sequences
func (h *Handler) CreateSequence(c *gin.Context) {
	orgID, err := httpkit.OrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	var req transport.CreateSequenceRequest
	if !httpkit.BindJSON(c, &req, h.validate) {
		return
	}

	seq, err := h.svc.CreateSequence(c.Request.Context(), req.ToSequence(orgID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.NewSequenceResponse(seq))
}

// ListSequences handles GET /api/v1/followups/sequences
func (h *Handler) ListSequences(c *gin.Context) {
	orgID, err := httpkit.OrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	items, err := h.svc.ListSequences(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.SequenceListResponse{Items: make([]transport.SequenceResponse, 0, len(items))}
	for _, seq := range items {
		resp.Items = append(resp.Items, transport.NewSequenceResponse(seq))
	}
	httpkit.OK(c, resp)
}

// Enroll handles POST /api/v1/followups/executions
func (h *Handler) Enroll(c *gin.Context) {
	var req transport.EnrollRequest
	if !httpkit.BindJSON(c, &req, h.validate) {
		return
	}

	exec, err := h.svc.Enroll(c.Request.Context(), uuid.MustParse(req.LeadID), uuid.MustParse(req.SequenceID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.NewExecutionResponse(exec))
}

// ListExecutions handles GET /api/v1/followups/executions?lead_id=
func (h *Handler) ListExecutions(c *gin.Context) {
	leadID, err := uuid.Parse(c.Query("lead_id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("lead_id query parameter must be a UUID"))
		return
	}

	items, err := h.svc.ListExecutionsByLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.ExecutionListResponse{Items: make([]transport.ExecutionResponse, 0, len(items))}
	for _, e := range items {
		resp.Items = append(resp.Items, transport.NewExecutionResponse(e))
	}
	httpkit.OK(c, resp)
}

// GetExecution handles GET /api/v1/followups/executions/:id
func (h *Handler) GetExecution(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	exec, err := h.svc.GetExecution(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewExecutionResponse(exec))
}

// Cancel handles POST /api/v1/followups/executions/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	exec, err := h.svc.Cancel(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewExecutionResponse(exec))
}
