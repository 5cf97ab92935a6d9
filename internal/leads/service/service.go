// Package service runs the lead intake pipeline: persist, score, classify
// and hand the lead to assignment.
package service

import (
	"context"
	"strings"
	"time"

	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/qualification/scoring"
	"leadflow_backend/internal/qualification/temperature"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/phone"
	"leadflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Assigner picks a closer for a qualified lead.
type Assigner interface {
	Assign(ctx context.Context, leadID uuid.UUID, force bool) (assignment.Decision, error)
}

// Qualification is the outcome of scoring one lead.
type Qualification struct {
	Lead        domain.Lead             `json:"-"`
	Score       scoring.Result          `json:"score_result"`
	Temperature temperature.Temperature `json:"temperature"`
}

// IntakeResult is what a form submission produces.
type IntakeResult struct {
	LeadID      uuid.UUID               `json:"lead_id"`
	Score       scoring.Result          `json:"score_result"`
	Temperature temperature.Temperature `json:"temperature"`
	Assignment  *assignment.Decision    `json:"assignment_result"`
	// AssignmentError is set when assignment could not run; the retry pass
	// picks the lead up later.
	AssignmentError string `json:"assignment_error,omitempty"`
}

// Options configure the pipeline.
type Options struct {
	Thresholds  temperature.Thresholds
	PhoneRegion string
	Clock       func() time.Time
}

// Service owns the lead pipeline.
type Service struct {
	store    repository.Store
	engine   *scoring.Engine
	assigner Assigner
	eventBus events.Bus
	log      *logger.Logger
	opts     Options
}

// New creates the lead service.
func New(store repository.Store, engine *scoring.Engine, assigner Assigner, eventBus events.Bus, log *logger.Logger, opts Options) *Service {
	if opts.Thresholds == (temperature.Thresholds{}) {
		opts.Thresholds = temperature.DefaultThresholds
	}
	if opts.PhoneRegion == "" {
		opts.PhoneRegion = phone.DefaultRegion
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, engine: engine, assigner: assigner, eventBus: eventBus, log: log, opts: opts}
}

// Thresholds returns the classification thresholds in use.
func (s *Service) Thresholds() temperature.Thresholds {
	return s.opts.Thresholds
}

// Create persists a lead and runs it through score, classify and assign.
func (s *Service) Create(ctx context.Context, p repository.CreateParams) (IntakeResult, error) {
	p.NomeCompleto = sanitize.Text(p.NomeCompleto)
	p.MotivacaoPrincipal = sanitize.Text(p.MotivacaoPrincipal)
	p.NomeIndicacao = sanitize.Text(p.NomeIndicacao)
	p.IndicadoPor = sanitize.Text(p.IndicadoPor)
	p.HesitationPoints = sanitize.List(p.HesitationPoints)
	p.Attributes = sanitize.Fields(p.Attributes)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Telefone != "" {
		p.Telefone = phone.NormalizeE164(p.Telefone, s.opts.PhoneRegion)
	}

	lead, err := s.store.Create(ctx, p)
	if err != nil {
		return IntakeResult{}, err
	}
	s.log.WithContext(ctx).Info("lead captured", "leadId", lead.ID, "organizationId", lead.OrganizationID)

	q, err := s.qualify(ctx, lead)
	if err != nil {
		return IntakeResult{}, err
	}

	result := IntakeResult{LeadID: lead.ID, Score: q.Score, Temperature: q.Temperature}
	if s.assigner == nil {
		return result, nil
	}
	decision, err := s.assigner.Assign(ctx, lead.ID, false)
	if err != nil {
		s.log.WithContext(ctx).Warn("assignment deferred", "leadId", lead.ID, "error", err)
		result.AssignmentError = "assignment deferred"
		return result, nil
	}
	result.Assignment = &decision
	return result, nil
}

// Qualify rescores an open lead. For the same attributes and clock the
// result is the same; rule sets that score form_age_hours give a lower
// result as the form ages.
func (s *Service) Qualify(ctx context.Context, leadID uuid.UUID) (Qualification, error) {
	lead, err := s.store.GetByID(ctx, leadID)
	if err != nil {
		return Qualification{}, err
	}
	if domain.IsTerminal(lead.Status) {
		return Qualification{}, apperr.Conflict("lead is closed")
	}
	return s.qualify(ctx, lead)
}

func (s *Service) qualify(ctx context.Context, lead domain.Lead) (Qualification, error) {
	now := s.opts.Clock()
	result := s.engine.Score(lead.ScoringAttributes(now))
	temp := temperature.Classify(result.Total, result.InstantQualifier, s.opts.Thresholds)

	saved, err := s.store.SaveQualification(ctx, repository.QualificationParams{
		LeadID:           lead.ID,
		Score:            result.Total,
		Temperatura:      string(temp),
		InstantQualifier: result.InstantQualifier,
		Breakdown:        result.Breakdown,
		RuleSet:          result.RuleSet,
		QualifiedAt:      now.UTC(),
	})
	if err != nil {
		return Qualification{}, err
	}

	metrics.LeadTemperature.WithLabelValues(string(temp)).Inc()
	s.log.WithContext(ctx).Info("lead qualified",
		"leadId", lead.ID,
		"score", result.Total,
		"temperature", temp,
		"instantQualifier", result.InstantQualifier,
		"ruleSet", result.RuleSet,
	)
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.LeadQualified{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           lead.ID,
			OrganizationID:   lead.OrganizationID,
			Score:            result.Total,
			Temperature:      string(temp),
			InstantQualifier: result.InstantQualifier,
		})
	}
	return Qualification{Lead: saved, Score: result, Temperature: temp}, nil
}

// Assign delegates to the assignment scheduler.
func (s *Service) Assign(ctx context.Context, leadID uuid.UUID, force bool) (assignment.Decision, error) {
	if s.assigner == nil {
		return assignment.Decision{}, apperr.Internal("assignment is not configured")
	}
	return s.assigner.Assign(ctx, leadID, force)
}

// Convert closes a lead as won. Subscribers release its closer slot and
// cancel its follow-ups before the call returns.
func (s *Service) Convert(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.store.Close(ctx, leadID, domain.StatusConverted, "")
	if err != nil {
		return domain.Lead{}, err
	}
	s.publishClosure(ctx, events.LeadConverted{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		CloserID:       lead.AssignedCloserID,
	})
	return lead, nil
}

// MarkLost closes a lead as lost.
func (s *Service) MarkLost(ctx context.Context, leadID uuid.UUID, reason string) (domain.Lead, error) {
	reason = sanitize.Text(reason)
	lead, err := s.store.Close(ctx, leadID, domain.StatusLost, reason)
	if err != nil {
		return domain.Lead{}, err
	}
	s.publishClosure(ctx, events.LeadLost{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		CloserID:       lead.AssignedCloserID,
		Reason:         reason,
	})
	return lead, nil
}

func (s *Service) publishClosure(ctx context.Context, event events.Event) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishSync(ctx, event); err != nil {
		s.log.WithContext(ctx).Error("lead closure side effects failed", "event", event.EventName(), "error", err)
	}
}

// Get loads one lead.
func (s *Service) Get(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	return s.store.GetByID(ctx, leadID)
}

// List returns an organization's leads.
func (s *Service) List(ctx context.Context, p repository.ListParams) ([]domain.Lead, error) {
	return s.store.List(ctx, p)
}
