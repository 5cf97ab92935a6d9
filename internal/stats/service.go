// Package stats is the read-only reporting view over closers and follow-ups.
// Its closer snapshot is also the roster the assignment scheduler decides on.
package stats

import (
	"context"
	"math"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Execution statuses reported by the follow-up counters.
var executionStatuses = []string{"active", "postponed", "completed", "cancelled"}

// CloserLoad is one closer's live capacity figures.
type CloserLoad struct {
	CloserID        uuid.UUID `json:"closer_id"`
	Name            string    `json:"name"`
	Capacity        int       `json:"capacity"`
	ActiveCount     int       `json:"active_count"`
	UtilizationPct  float64   `json:"utilization_pct"`
	Specializations []string  `json:"specializations"`
	IsActive        bool      `json:"is_active"`
}

// HasRoom reports whether the closer can take another lead.
func (c CloserLoad) HasRoom() bool {
	return c.IsActive && c.ActiveCount < c.Capacity
}

// TeamSummary is the snapshot plus team totals.
type TeamSummary struct {
	Closers        []CloserLoad `json:"closers"`
	TotalCapacity  int          `json:"total_capacity"`
	TotalActive    int          `json:"total_active"`
	UtilizationPct float64      `json:"utilization_pct"`
	AvailableSlots int          `json:"available_slots"`
}

// FollowupSummary reports execution counts and per-sequence reach.
type FollowupSummary struct {
	Counts    map[string]int  `json:"counts"`
	Total     int             `json:"total"`
	Sequences []SequenceReach `json:"sequences,omitempty"`
}

// Service computes reporting views. Nothing is cached between calls.
type Service struct {
	reader Reader
}

// NewService creates a stats service.
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Utilization returns active/capacity as a percentage rounded to two places.
// A closer without capacity is reported as fully utilized.
func Utilization(active, capacity int) float64 {
	if capacity <= 0 {
		return 100
	}
	return math.Round(float64(active)/float64(capacity)*10000) / 100
}

// Snapshot returns the organization's roster as of now.
func (s *Service) Snapshot(ctx context.Context, organizationID uuid.UUID) ([]CloserLoad, error) {
	rows, err := s.reader.ListClosers(ctx, organizationID)
	if err != nil {
		return nil, apperr.Unavailable("closer roster unavailable", err)
	}

	roster := make([]CloserLoad, 0, len(rows))
	for _, row := range rows {
		specs := row.Specializations
		if specs == nil {
			specs = []string{}
		}
		roster = append(roster, CloserLoad{
			CloserID:        row.ID,
			Name:            row.Name,
			Capacity:        row.Capacity,
			ActiveCount:     row.ActiveCount,
			UtilizationPct:  Utilization(row.ActiveCount, row.Capacity),
			Specializations: specs,
			IsActive:        row.IsActive,
		})
	}
	return roster, nil
}

// Team returns the snapshot with totals over active closers.
func (s *Service) Team(ctx context.Context, organizationID uuid.UUID) (TeamSummary, error) {
	roster, err := s.Snapshot(ctx, organizationID)
	if err != nil {
		return TeamSummary{}, err
	}

	summary := TeamSummary{Closers: roster}
	for _, c := range roster {
		if !c.IsActive {
			continue
		}
		summary.TotalCapacity += c.Capacity
		summary.TotalActive += c.ActiveCount
		if c.HasRoom() {
			summary.AvailableSlots += c.Capacity - c.ActiveCount
		}
	}
	summary.UtilizationPct = Utilization(summary.TotalActive, summary.TotalCapacity)
	if summary.TotalCapacity == 0 {
		summary.UtilizationPct = 0
	}
	return summary, nil
}

// ExecutionCounts returns counts for every execution status, zero-filled.
func (s *Service) ExecutionCounts(ctx context.Context, organizationID *uuid.UUID) (FollowupSummary, error) {
	counts, err := s.reader.CountExecutionsByStatus(ctx, organizationID)
	if err != nil {
		return FollowupSummary{}, apperr.Unavailable("execution counts unavailable", err)
	}

	summary := FollowupSummary{Counts: make(map[string]int, len(executionStatuses))}
	for _, status := range executionStatuses {
		summary.Counts[status] = counts[status]
		summary.Total += counts[status]
	}
	return summary, nil
}

// Followups returns execution counts plus per-sequence reach.
func (s *Service) Followups(ctx context.Context, organizationID *uuid.UUID) (FollowupSummary, error) {
	summary, err := s.ExecutionCounts(ctx, organizationID)
	if err != nil {
		return FollowupSummary{}, err
	}

	reach, err := s.reader.ListSequenceReach(ctx, organizationID)
	if err != nil {
		return FollowupSummary{}, apperr.Unavailable("sequence stats unavailable", err)
	}
	summary.Sequences = reach
	return summary, nil
}
