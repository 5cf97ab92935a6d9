package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	pendingScanLimit = 50
	pendingShowLimit = 10
)

// AwardRequest asks for the referral point of one lead.
type AwardRequest struct {
	LeadID         uuid.UUID
	IndicadoPorID  string
	ForceReprocess bool
}

// AwardResult reports what happened to an award request.
type AwardResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	Processed        bool   `json:"processed"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
	Pontuacao        *Point `json:"pontuacao,omitempty"`
	TotalPontos      int    `json:"total_pontos,omitempty"`
	Indicador        string `json:"indicador,omitempty"`
	Lead             string `json:"lead,omitempty"`
}

// PendingLead is a referred lead without a point yet.
type PendingLead struct {
	LeadID      uuid.UUID `json:"lead_id"`
	LeadNome    string    `json:"lead_nome"`
	LeadStatus  string    `json:"lead_status"`
	IndicadoPor string    `json:"indicado_por"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingReport lists referrals that still need processing.
type PendingReport struct {
	Success           bool          `json:"success"`
	PendingCount      int           `json:"pending_count"`
	PendingLeads      []PendingLead `json:"pending_leads"`
	TotalLeadsChecked int           `json:"total_leads_checked"`
}

// Service awards referral points to mentees.
type Service struct {
	store Store
	log   *logger.Logger
}

// NewService creates a referral service.
func NewService(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log}
}

// Award credits one point to whoever referred the lead. Without
// ForceReprocess a lead is only ever credited once.
func (s *Service) Award(ctx context.Context, req AwardRequest) (AwardResult, error) {
	lead, err := s.store.GetLead(ctx, req.LeadID)
	if err != nil {
		return AwardResult{}, err
	}

	if !req.ForceReprocess {
		done, err := s.store.HasAward(ctx, lead.ID)
		if err != nil {
			return AwardResult{}, apperr.Unavailable("referral points unavailable", err)
		}
		if done {
			return alreadyProcessed(lead), nil
		}
	}

	ref := strings.TrimSpace(req.IndicadoPorID)
	if ref == "" {
		ref = strings.TrimSpace(lead.IndicadoPor)
	}
	if ref == "" {
		return AwardResult{Message: "no referrer identified for this lead", Lead: lead.NomeCompleto}, nil
	}

	mentor, found, err := s.resolveMentor(ctx, ref)
	if err != nil {
		return AwardResult{}, apperr.Unavailable("referral points unavailable", err)
	}
	if !found {
		return AwardResult{Message: fmt.Sprintf("referrer %q not found as a mentee", ref), Lead: lead.NomeCompleto}, nil
	}

	point, total, err := s.store.Award(ctx, AwardParams{
		MentorID:  mentor.ID,
		LeadID:    lead.ID,
		Descricao: "Indicação do lead: " + lead.NomeCompleto,
		Forced:    req.ForceReprocess,
	})
	if errors.Is(err, ErrAlreadyAwarded) {
		return alreadyProcessed(lead), nil
	}
	if err != nil {
		return AwardResult{}, apperr.Unavailable("referral points unavailable", err)
	}

	metrics.ReferralPointsAwarded.Inc()
	s.log.WithContext(ctx).Info("referral point awarded",
		"leadId", lead.ID, "mentorId", mentor.ID, "total", total, "forced", req.ForceReprocess)

	return AwardResult{
		Success:     true,
		Processed:   true,
		Message:     fmt.Sprintf("1 point added for %s for referring %s", mentor.NomeCompleto, lead.NomeCompleto),
		Pontuacao:   &point,
		TotalPontos: total,
		Indicador:   mentor.NomeCompleto,
		Lead:        lead.NomeCompleto,
	}, nil
}

func (s *Service) resolveMentor(ctx context.Context, ref string) (Mentor, bool, error) {
	if id, err := uuid.Parse(ref); err == nil {
		m, found, err := s.store.FindMentorByID(ctx, id)
		if err != nil || found {
			return m, found, err
		}
	}
	return s.store.FindMentorByName(ctx, ref)
}

func alreadyProcessed(lead Lead) AwardResult {
	return AwardResult{
		Message:          "points were already awarded for this referral",
		AlreadyProcessed: true,
		Lead:             lead.NomeCompleto,
	}
}

// Pending lists up to ten unawarded referrals among the most recent
// referred leads.
func (s *Service) Pending(ctx context.Context) (PendingReport, error) {
	leads, err := s.store.ListRecentReferred(ctx, pendingScanLimit)
	if err != nil {
		return PendingReport{}, apperr.Unavailable("referral points unavailable", err)
	}

	pending := make([]PendingLead, 0)
	for _, l := range leads {
		if l.Awarded {
			continue
		}
		pending = append(pending, PendingLead{
			LeadID:      l.ID,
			LeadNome:    l.NomeCompleto,
			LeadStatus:  l.Status,
			IndicadoPor: l.IndicadoPor,
			CreatedAt:   l.CreatedAt,
		})
	}

	report := PendingReport{
		Success:           true,
		PendingCount:      len(pending),
		PendingLeads:      pending,
		TotalLeadsChecked: len(leads),
	}
	if len(report.PendingLeads) > pendingShowLimit {
		report.PendingLeads = report.PendingLeads[:pendingShowLimit]
	}
	return report, nil
}
