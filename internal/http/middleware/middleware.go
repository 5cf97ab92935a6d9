package middleware

import (
	"strconv"
	"time"

	"leadflow_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

// RequestTimer records request latency per route template and status.
func RequestTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
