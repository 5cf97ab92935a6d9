// Package events defines the lead and follow-up lifecycle events. The bus
// itself lives in platform/events and is re-exported here.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadQualified is published after a lead is scored and classified.
type LeadQualified struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	OrganizationID   uuid.UUID `json:"organizationId"`
	Score            int       `json:"score"`
	Temperature      string    `json:"temperature"`
	InstantQualifier bool      `json:"instantQualifier"`
}

func (e LeadQualified) EventName() string { return "leads.lead.qualified" }

// LeadAssigned is published when a closer slot is taken for a lead.
type LeadAssigned struct {
	BaseEvent
	LeadID           uuid.UUID  `json:"leadId"`
	OrganizationID   uuid.UUID  `json:"organizationId"`
	CloserID         uuid.UUID  `json:"closerId"`
	PreviousCloserID *uuid.UUID `json:"previousCloserId,omitempty"`
	Reason           string     `json:"reason"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadConverted is published when a lead becomes a customer.
type LeadConverted struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	CloserID       *uuid.UUID `json:"closerId,omitempty"`
}

func (e LeadConverted) EventName() string { return "leads.lead.converted" }

// LeadLost is published when a lead opts out or is discarded.
type LeadLost struct {
	BaseEvent
	LeadID         uuid.UUID  `json:"leadId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	CloserID       *uuid.UUID `json:"closerId,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

func (e LeadLost) EventName() string { return "leads.lead.lost" }

// =============================================================================
// Follow-up Domain Events
// =============================================================================

// FollowupCompleted is published when an execution runs out of steps.
type FollowupCompleted struct {
	BaseEvent
	ExecutionID      uuid.UUID `json:"executionId"`
	LeadID           uuid.UUID `json:"leadId"`
	SequenceID       uuid.UUID `json:"sequenceId"`
	TotalTouchpoints int       `json:"totalTouchpoints"`
}

func (e FollowupCompleted) EventName() string { return "followups.execution.completed" }
