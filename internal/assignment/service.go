package assignment

import (
	"context"
	"slices"

	"leadflow_backend/internal/events"
	leaddomain "leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/qualification/scoring"
	"leadflow_backend/internal/stats"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

// maxTakeAttempts bounds how often a lost slot race is retried with a fresh
// roster before giving up with no_capacity.
const maxTakeAttempts = 3

// Roster supplies a fresh closer snapshot for an organization.
type Roster interface {
	Snapshot(ctx context.Context, organizationID uuid.UUID) ([]stats.CloserLoad, error)
}

// RetrySummary reports one retry pass over unassigned leads.
type RetrySummary struct {
	Checked  int            `json:"checked"`
	Assigned int            `json:"assigned"`
	Reasons  map[Reason]int `json:"reasons"`
	Errors   int            `json:"errors"`
}

// Service assigns leads to closers.
type Service struct {
	store    Store
	roster   Roster
	eventBus events.Bus
	log      *logger.Logger
}

// NewService creates an assignment service.
func NewService(store Store, roster Roster, eventBus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, roster: roster, eventBus: eventBus, log: log}
}

// Assign picks a closer for the lead and takes the slot. Repeated calls on an
// assigned lead are no-ops unless force is set, which moves the lead to a
// different closer and frees the old slot.
func (s *Service) Assign(ctx context.Context, leadID uuid.UUID, force bool) (Decision, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return Decision{}, err
	}
	if leaddomain.IsTerminal(lead.Status) {
		return Decision{}, apperr.Conflict("lead is closed")
	}
	if !lead.Qualified() {
		return Decision{}, apperr.Conflict("lead has not been qualified")
	}

	for attempt := 1; attempt <= maxTakeAttempts; attempt++ {
		if lead.AssignedCloserID != nil && !force {
			return s.record(lead, Decision{Assigned: true, CloserID: lead.AssignedCloserID, Reason: ReasonAlreadyAssigned}), nil
		}

		roster, err := s.roster.Snapshot(ctx, lead.OrganizationID)
		if err != nil {
			return Decision{}, err
		}

		var exclude []uuid.UUID
		if lead.AssignedCloserID != nil {
			exclude = append(exclude, *lead.AssignedCloserID)
		}
		chosen, ok := Select(lead.Category, roster, exclude...)
		if !ok {
			return s.record(lead, Decision{Reason: ReasonNoCapacity}), nil
		}

		reason := ReasonBestFit
		if lead.AssignedCloserID != nil {
			reason = ReasonReassigned
		}
		outcome, err := s.store.TakeSlot(ctx, TakeSlotParams{
			LeadID:           lead.ID,
			CloserID:         chosen.CloserID,
			PreviousCloserID: lead.AssignedCloserID,
			Reason:           reason,
		})
		if err != nil {
			return Decision{}, apperr.Unavailable("assignment store unavailable", err)
		}

		switch outcome {
		case SlotTaken:
			closerID := chosen.CloserID
			decision := Decision{
				Assigned:       true,
				CloserID:       &closerID,
				Reason:         reason,
				UtilizationPct: stats.Utilization(chosen.ActiveCount+1, chosen.Capacity),
			}
			s.publishAssigned(ctx, lead, closerID, reason)
			return s.record(lead, decision), nil
		case LeadChanged:
			// Someone else assigned the lead since we read it.
			if lead, err = s.store.GetLead(ctx, leadID); err != nil {
				return Decision{}, err
			}
			force = false
		case SlotFull:
			s.log.Debug("closer filled during assignment, retrying",
				"leadId", lead.ID, "closerId", chosen.CloserID, "attempt", attempt)
		}
	}

	if lead.AssignedCloserID != nil && !force {
		return s.record(lead, Decision{Assigned: true, CloserID: lead.AssignedCloserID, Reason: ReasonAlreadyAssigned}), nil
	}
	return s.record(lead, Decision{Reason: ReasonNoCapacity}), nil
}

// Release frees the closer slot held by a lead that left the funnel.
func (s *Service) Release(ctx context.Context, leadID uuid.UUID) error {
	closerID, err := s.store.ReleaseSlot(ctx, leadID)
	if err != nil {
		return apperr.Unavailable("assignment store unavailable", err)
	}
	if closerID != nil {
		s.log.Info("closer slot released", "leadId", leadID, "closerId", *closerID)
	}
	return nil
}

// RetryUnassigned assigns queued leads, best-ranked first.
func (s *Service) RetryUnassigned(ctx context.Context, limit int) (RetrySummary, error) {
	pending, err := s.store.ListUnassigned(ctx, limit)
	if err != nil {
		return RetrySummary{}, apperr.Unavailable("assignment store unavailable", err)
	}

	slices.SortStableFunc(pending, func(a, b LeadState) int {
		return scoring.Compare(rankOf(a), rankOf(b))
	})

	summary := RetrySummary{Reasons: make(map[Reason]int)}
	for _, lead := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		decision, err := s.Assign(ctx, lead.ID, false)
		if err != nil {
			summary.Errors++
			s.log.Warn("assignment retry failed", "leadId", lead.ID, "error", err)
			continue
		}
		summary.Reasons[decision.Reason]++
		if decision.Assigned && decision.Reason != ReasonAlreadyAssigned {
			summary.Assigned++
		}
	}

	s.log.Info("assignment retry pass finished",
		"checked", summary.Checked, "assigned", summary.Assigned, "errors", summary.Errors)
	return summary, nil
}

// SubscribeReleases frees slots when leads convert or are lost.
func (s *Service) SubscribeReleases(bus events.Bus) {
	release := events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		switch e := event.(type) {
		case events.LeadConverted:
			return s.Release(ctx, e.LeadID)
		case events.LeadLost:
			return s.Release(ctx, e.LeadID)
		}
		return nil
	})
	bus.Subscribe(events.LeadConverted{}.EventName(), release)
	bus.Subscribe(events.LeadLost{}.EventName(), release)
}

func (s *Service) record(lead LeadState, d Decision) Decision {
	closer := ""
	if d.CloserID != nil {
		closer = d.CloserID.String()
	}
	s.log.AssignmentDecision(lead.ID.String(), closer, string(d.Reason))
	metrics.LeadAssignments.WithLabelValues(string(d.Reason)).Inc()
	return d
}

func (s *Service) publishAssigned(ctx context.Context, lead LeadState, closerID uuid.UUID, reason Reason) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(ctx, events.LeadAssigned{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           lead.ID,
		OrganizationID:   lead.OrganizationID,
		CloserID:         closerID,
		PreviousCloserID: lead.AssignedCloserID,
		Reason:           string(reason),
	})
}

func rankOf(l LeadState) scoring.Result {
	r := scoring.Result{InstantQualifier: l.InstantQualifier}
	if l.Score != nil {
		r.Total = *l.Score
	}
	return r
}
