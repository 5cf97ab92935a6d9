package http

import (
	"context"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// RouterConfig is the subset of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
	config.TriggerConfig
}

// HealthChecker backs /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and handed to router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health may be nil, in which case /api/health always reports ok.
	Health    HealthChecker
	EventBus  events.Bus
	Validator *validator.Validator
	Modules   []Module
}
