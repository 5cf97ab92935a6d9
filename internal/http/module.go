// Package http holds the module registry the router mounts: every bounded
// context exposes its endpoints through Module.
package http

import (
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Module is implemented by leads, assignment, followup, referral and stats.
type Module interface {
	Name() string
	// RegisterRoutes mounts the module's endpoints on the groups it needs.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext is what a module sees of the router while registering.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without any auth.
	V1 *gin.RouterGroup
	// Protected is /api/v1 behind AuthRequired; it stays open when no JWT
	// secret is configured.
	Protected *gin.RouterGroup
	// Trigger is /api/v1 for cron-style callers: rate limited and guarded by
	// the trigger secret or an admin token.
	Trigger   *gin.RouterGroup
	Config    config.JWTConfig
	Validator *validator.Validator
}
