package service

import (
	"context"
	"strings"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/followup/domain"
	"leadflow_backend/internal/followup/repository"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// CreateSequence validates and stores a sequence definition.
func (s *Service) CreateSequence(ctx context.Context, seq domain.Sequence) (domain.Sequence, error) {
	if strings.TrimSpace(seq.Nome) == "" {
		return domain.Sequence{}, apperr.Validation("nome_sequencia is required")
	}
	if len(seq.Steps) == 0 {
		return domain.Sequence{}, apperr.Validation("a sequence needs at least one step")
	}
	if seq.StartHour < 0 || seq.StartHour > 24 || seq.EndHour < 0 || seq.EndHour > 24 {
		return domain.Sequence{}, apperr.Validation("send window hours must be between 0 and 24")
	}
	for i, step := range seq.Steps {
		if step.DelayDays < 0 || step.DelayHours < 0 {
			return domain.Sequence{}, apperr.Validation("step delays cannot be negative").WithDetails(map[string]int{"step": i})
		}
	}
	return s.store.CreateSequence(ctx, seq)
}

// ListSequences returns an organization's sequences.
func (s *Service) ListSequences(ctx context.Context, organizationID uuid.UUID) ([]domain.Sequence, error) {
	return s.store.ListSequences(ctx, organizationID)
}

// Enroll starts a lead on a sequence. The first step becomes due after its
// own delay.
func (s *Service) Enroll(ctx context.Context, leadID, sequenceID uuid.UUID) (domain.Execution, error) {
	seq, err := s.store.GetSequence(ctx, sequenceID)
	if err != nil {
		return domain.Execution{}, err
	}
	if !seq.IsActive {
		return domain.Execution{}, apperr.Conflict("sequence is inactive")
	}
	if len(seq.Steps) == 0 {
		return domain.Execution{}, apperr.Conflict("sequence has no steps")
	}

	exec, err := s.store.Enroll(ctx, repository.EnrollParams{
		LeadID:     leadID,
		SequenceID: sequenceID,
		FirstDue:   domain.FirstDue(seq, s.opts.Clock()).UTC(),
	})
	if err != nil {
		return domain.Execution{}, err
	}
	s.log.WithContext(ctx).Info("lead enrolled in followup sequence",
		"leadId", leadID, "sequenceId", sequenceID, "executionId", exec.ID)
	return exec, nil
}

// GetExecution loads one execution.
func (s *Service) GetExecution(ctx context.Context, id uuid.UUID) (domain.Execution, error) {
	return s.store.GetExecution(ctx, id)
}

// ListExecutionsByLead returns every execution of a lead.
func (s *Service) ListExecutionsByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Execution, error) {
	return s.store.ListExecutionsByLead(ctx, leadID)
}

// Cancel stops one execution.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Execution, error) {
	return s.store.Cancel(ctx, id)
}

// CancelForLead stops every open execution of a lead.
func (s *Service) CancelForLead(ctx context.Context, leadID uuid.UUID, reason string) (int64, error) {
	n, err := s.store.CancelForLead(ctx, leadID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithContext(ctx).Info("followups cancelled for lead", "leadId", leadID, "count", n, "reason", reason)
	}
	return n, nil
}

// SubscribeLeadClosure cancels a lead's follow-ups once it converts or is
// lost.
func (s *Service) SubscribeLeadClosure(bus events.Bus) {
	bus.Subscribe(events.LeadConverted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadConverted)
		if !ok {
			return nil
		}
		_, err := s.CancelForLead(ctx, e.LeadID, "converted")
		return err
	}))
	bus.Subscribe(events.LeadLost{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadLost)
		if !ok {
			return nil
		}
		_, err := s.CancelForLead(ctx, e.LeadID, "lost")
		return err
	}))
}
