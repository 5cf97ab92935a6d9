// Package domain holds the follow-up sequencer's state machine. Everything
// here is pure: callers pass the clock in and persist what comes back.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is an execution's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPostponed Status = "postponed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further changes may happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Open reports whether the execution is still waiting for its next step.
func (s Status) Open() bool {
	return s == StatusActive || s == StatusPostponed
}

// Step is one entry of a sequence definition.
type Step struct {
	Titulo     string `json:"titulo"`
	TipoAcao   string `json:"tipo_acao"`
	Conteudo   string `json:"conteudo"`
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
}

// Delay is how long to wait after the previous step before this one runs.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// Sequence is a named, ordered follow-up template.
type Sequence struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Nome           string    `json:"nome_sequencia"`
	Steps          []Step    `json:"steps"`
	StartHour      int       `json:"start_hour"`
	EndHour        int       `json:"end_hour"`
	Timezone       string    `json:"timezone,omitempty"`
	LeadsAtingidos int       `json:"leads_atingidos"`
	IsActive       bool      `json:"is_active"`
}

// ExecutedStep is one entry of an execution's append-only log.
type ExecutedStep struct {
	Step       int       `json:"step"`
	ExecutedAt time.Time `json:"executed_at"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
}

// Execution is one lead's run through a sequence.
type Execution struct {
	ID               uuid.UUID      `json:"id"`
	OrganizationID   uuid.UUID      `json:"organization_id"`
	LeadID           uuid.UUID      `json:"lead_id"`
	SequenceID       uuid.UUID      `json:"sequence_id"`
	Status           Status         `json:"status"`
	StepAtual        int            `json:"step_atual"`
	ProximaExecucao  *time.Time     `json:"proxima_execucao"`
	StepsExecutados  []ExecutedStep `json:"steps_executados"`
	TotalTouchpoints int            `json:"total_touchpoints"`
	LastError        *string        `json:"last_error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// CurrentStep returns the step the execution is waiting on, or false when
// the sequence is exhausted.
func CurrentStep(exec Execution, seq Sequence) (Step, bool) {
	if exec.StepAtual < 0 || exec.StepAtual >= len(seq.Steps) {
		return Step{}, false
	}
	return seq.Steps[exec.StepAtual], true
}

// FirstDue is when a fresh enrollment should run its first step.
func FirstDue(seq Sequence, now time.Time) time.Time {
	if len(seq.Steps) == 0 {
		return now
	}
	return now.Add(seq.Steps[0].Delay())
}

// Progress is the state to persist after a successful dispatch.
type Progress struct {
	StepAtual        int
	Status           Status
	ProximaExecucao  *time.Time
	Entry            ExecutedStep
	TotalTouchpoints int
	// FirstStep is set when step 0 completed; the sequence's reach counter
	// moves once per lead on that transition.
	FirstStep bool
}

// Advance computes the state after the current step was delivered at now.
// The next run is scheduled with the next step's delay; past the last step
// the execution completes and loses its due time.
func Advance(exec Execution, seq Sequence, step Step, now time.Time) Progress {
	next := exec.StepAtual + 1
	p := Progress{
		StepAtual:        next,
		Status:           StatusActive,
		TotalTouchpoints: exec.TotalTouchpoints + 1,
		FirstStep:        exec.StepAtual == 0,
		Entry: ExecutedStep{
			Step:       exec.StepAtual,
			ExecutedAt: now.UTC(),
			Type:       step.TipoAcao,
			Content:    step.Titulo,
		},
	}

	if next < len(seq.Steps) {
		due := now.Add(seq.Steps[next].Delay()).UTC()
		p.ProximaExecucao = &due
	} else {
		p.Status = StatusCompleted
	}
	return p
}
