// Package leads provides the lead intake bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"fmt"

	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/qualification/scoring"
	"leadflow_backend/internal/qualification/temperature"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config combines the settings the lead pipeline needs.
type Config interface {
	config.QualificationConfig
	GetPhoneDefaultRegion() string
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule loads the configured rule set and wires the pipeline.
func NewModule(pool *pgxpool.Pool, cfg Config, assigner service.Assigner, eventBus events.Bus, val *validator.Validator, log *logger.Logger) (*Module, error) {
	engine, thresholds, err := LoadEngine(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("scoring rule set loaded",
		"ruleSet", engine.RuleSet().Name,
		"version", engine.RuleSet().Version,
		"hotThreshold", thresholds.Hot,
		"warmThreshold", thresholds.Warm,
	)

	svc := service.New(repository.New(pool), engine, assigner, eventBus, log, service.Options{
		Thresholds:  thresholds,
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
	})
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

// LoadEngine builds the scoring engine from the configured rule file (or the
// built-in rule sets) and resolves the thresholds. A rule set's own
// thresholds take precedence over the global ones.
func LoadEngine(cfg config.QualificationConfig) (*scoring.Engine, temperature.Thresholds, error) {
	var (
		catalog scoring.Catalog
		err     error
	)
	if path := cfg.GetQualificationRulesFile(); path != "" {
		catalog, err = scoring.Load(path)
	} else {
		catalog, err = scoring.Builtin()
	}
	if err != nil {
		return nil, temperature.Thresholds{}, err
	}

	rs, err := catalog.Get(cfg.GetQualificationRuleSet())
	if err != nil {
		return nil, temperature.Thresholds{}, err
	}

	thresholds := temperature.DefaultThresholds.
		Override(cfg.GetHotThreshold(), cfg.GetWarmThreshold()).
		Override(rs.HotThreshold, rs.WarmThreshold)
	if err := thresholds.Validate(); err != nil {
		return nil, temperature.Thresholds{}, fmt.Errorf("rule set %s: %w", rs.Name, err)
	}
	return scoring.NewEngine(rs), thresholds, nil
}

// Service returns the lead service.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
