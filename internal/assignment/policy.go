// Package assignment hands qualified leads to closers under capacity limits.
//
// Selection is a pure function over a roster snapshot. The service around it
// takes the chosen slot with a conditional increment, so a closer never ends
// up above capacity even when several leads are assigned concurrently.
package assignment

import (
	"slices"

	"leadflow_backend/internal/stats"
	"leadflow_backend/platform/textnorm"

	"github.com/google/uuid"
)

// Reason explains an assignment decision.
type Reason string

const (
	ReasonBestFit         Reason = "best_fit"
	ReasonNoCapacity      Reason = "no_capacity"
	ReasonAlreadyAssigned Reason = "already_assigned"
	ReasonReassigned      Reason = "reassigned"
)

// Decision is the result of one assignment attempt.
type Decision struct {
	Assigned       bool       `json:"assigned"`
	CloserID       *uuid.UUID `json:"closer_id,omitempty"`
	Reason         Reason     `json:"reason"`
	UtilizationPct float64    `json:"utilization_pct,omitempty"`
}

// Select picks the closer for a lead in category from roster. Closers in
// exclude are skipped. It returns false when nobody has room.
//
// Eligible closers are active, below capacity and either tagged with the
// category or untagged. With no category every closer is eligible. The
// lowest utilization wins, then the fewest active leads, then roster order.
func Select(category string, roster []stats.CloserLoad, exclude ...uuid.UUID) (stats.CloserLoad, bool) {
	want := textnorm.Fold(category)

	type candidate struct {
		load  stats.CloserLoad
		order int
	}
	eligible := make([]candidate, 0, len(roster))
	for i, c := range roster {
		if !c.HasRoom() || slices.Contains(exclude, c.CloserID) {
			continue
		}
		if !servesCategory(c.Specializations, want) {
			continue
		}
		eligible = append(eligible, candidate{load: c, order: i})
	}
	if len(eligible) == 0 {
		return stats.CloserLoad{}, false
	}

	best := slices.MinFunc(eligible, func(a, b candidate) int {
		// a.active/a.capacity vs b.active/b.capacity without floats.
		if d := a.load.ActiveCount*b.load.Capacity - b.load.ActiveCount*a.load.Capacity; d != 0 {
			return d
		}
		if d := a.load.ActiveCount - b.load.ActiveCount; d != 0 {
			return d
		}
		return a.order - b.order
	})
	return best.load, true
}

func servesCategory(tags []string, category string) bool {
	if category == "" || len(tags) == 0 {
		return true
	}
	for _, tag := range tags {
		if textnorm.Fold(tag) == category {
			return true
		}
	}
	return false
}
