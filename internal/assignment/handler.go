package assignment

import (
	"context"
	"net/http"
	"strconv"

	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const defaultRetryLimit = 100

// RetryQueue hands a retry pass to the background worker. queued is false
// when an identical pass is already waiting.
type RetryQueue interface {
	EnqueueAssignmentRetry(ctx context.Context, limit int) (queued bool, err error)
}

// Handler exposes the assignment retry trigger.
type Handler struct {
	svc   *Service
	queue RetryQueue
}

// NewHandler creates the handler. With a nil queue every retry runs inline.
func NewHandler(svc *Service, queue RetryQueue) *Handler {
	return &Handler{svc: svc, queue: queue}
}

// Retry handles POST /api/v1/assignments/retry?limit=N
func (h *Handler) Retry(c *gin.Context) {
	limit := defaultRetryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	if h.queue != nil {
		queued, err := h.queue.EnqueueAssignmentRetry(c.Request.Context(), limit)
		if err == nil {
			httpkit.JSON(c, http.StatusAccepted, gin.H{"queued": queued, "limit": limit})
			return
		}
		h.svc.log.WithContext(c.Request.Context()).Warn("assignment retry not queued, running inline", "error", err)
	}

	summary, err := h.svc.RetryUnassigned(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}
