package handler

import (
	"strconv"

	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc      *service.Service
	validate *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, validate: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/qualify", h.Qualify)
	rg.POST("/:id/assign", h.Assign)
	rg.POST("/:id/convert", h.Convert)
	rg.POST("/:id/lost", h.MarkLost)
}

func (h *Handler) Create(c *gin.Context) {
	orgID, err := httpkit.OrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	var req transport.CreateLeadRequest
	if !httpkit.BindJSON(c, &req, h.validate) {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), req.ToParams(orgID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

func (h *Handler) List(c *gin.Context) {
	orgID, err := httpkit.OrganizationID(c)
	if httpkit.HandleError(c, err) {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.svc.List(c.Request.Context(), repository.ListParams{
		OrganizationID: orgID,
		Status:         c.Query("status"),
		Temperatura:    c.Query("temperatura"),
		Limit:          limit,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LeadListResponse{Items: make([]transport.LeadResponse, 0, len(items))}
	for _, l := range items {
		resp.Items = append(resp.Items, transport.NewLeadResponse(l))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewLeadResponse(lead))
}

func (h *Handler) Qualify(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	q, err := h.svc.Qualify(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"lead_id":      q.Lead.ID,
		"score_result": q.Score,
		"temperature":  q.Temperature,
		"status":       q.Lead.Status,
	})
}

func (h *Handler) Assign(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	var req transport.AssignRequest
	if c.Request.ContentLength > 0 && !httpkit.BindJSON(c, &req, h.validate) {
		return
	}

	if req.Force && httpkit.Authenticated(c) && !httpkit.HasRole(c, httpkit.RoleAdmin) {
		httpkit.HandleError(c, apperr.New(apperr.KindForbidden, "forced reassignment requires the admin role"))
		return
	}

	decision, err := h.svc.Assign(c.Request.Context(), id, req.Force)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, decision)
}

func (h *Handler) Convert(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	lead, err := h.svc.Convert(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewLeadResponse(lead))
}

func (h *Handler) MarkLost(c *gin.Context) {
	id, err := httpkit.ParamUUID(c, "id")
	if httpkit.HandleError(c, err) {
		return
	}

	var req transport.LostRequest
	if c.Request.ContentLength > 0 && !httpkit.BindJSON(c, &req, h.validate) {
		return
	}

	lead, err := h.svc.MarkLost(c.Request.Context(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewLeadResponse(lead))
}
