// Package metrics registers the Prometheus collectors exported on /metrics.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FollowupDispatch counts delivery attempts per channel and outcome.
	FollowupDispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_dispatch_total",
			Help: "Follow-up dispatch attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// FollowupBatchItems counts batch results per status.
	FollowupBatchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_batch_items_total",
			Help: "Follow-up executions processed by result status",
		},
		[]string{"status"},
	)

	// FollowupBatchDuration observes how long a batch run takes.
	FollowupBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "followup_batch_duration_seconds",
			Help:    "Follow-up batch run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LeadAssignments counts assignment decisions by reason.
	LeadAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_assignments_total",
			Help: "Lead assignment decisions by reason",
		},
		[]string{"reason"},
	)

	// LeadTemperature counts qualification results by temperature.
	LeadTemperature = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_temperature_total",
			Help: "Qualified leads by temperature",
		},
		[]string{"temperature"},
	)

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ReferralPointsAwarded counts points credited to referrers.
	ReferralPointsAwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_points_awarded_total",
			Help: "Referral points credited to mentees",
		},
	)
)

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
