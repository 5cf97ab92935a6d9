package transport

import (
	"time"

	"leadflow_backend/internal/followup/domain"

	"github.com/google/uuid"
)

// Request DTOs
type StepRequest struct {
	Titulo     string `json:"titulo" validate:"required,max=200"`
	TipoAcao   string `json:"tipo_acao" validate:"required,channel"`
	Conteudo   string `json:"conteudo" validate:"required,max=4000"`
	DelayDays  int    `json:"delay_days" validate:"gte=0,lte=365"`
	DelayHours int    `json:"delay_hours" validate:"gte=0,lte=8760"`
}

type CreateSequenceRequest struct {
	NomeSequencia string        `json:"nome_sequencia" validate:"required,min=1,max=200"`
	Steps         []StepRequest `json:"steps" validate:"required,min=1,max=50,dive"`
	StartHour     *int          `json:"start_hour" validate:"omitempty,hour"`
	EndHour       *int          `json:"end_hour" validate:"omitempty,hour"`
	Timezone      string        `json:"timezone,omitempty" validate:"omitempty,timezone"`
	IsActive      *bool         `json:"is_active,omitempty"`
}

type EnrollRequest struct {
	LeadID     string `json:"lead_id" validate:"required,uuid"`
	SequenceID string `json:"sequence_id" validate:"required,uuid"`
}

// Response DTOs
type SequenceResponse struct {
	ID             uuid.UUID     `json:"id"`
	NomeSequencia  string        `json:"nome_sequencia"`
	Steps          []domain.Step `json:"steps"`
	StartHour      int           `json:"start_hour"`
	EndHour        int           `json:"end_hour"`
	Timezone       string        `json:"timezone,omitempty"`
	LeadsAtingidos int           `json:"leads_atingidos"`
	IsActive       bool          `json:"is_active"`
}

type ExecutionResponse struct {
	ID               uuid.UUID             `json:"id"`
	LeadID           uuid.UUID             `json:"lead_id"`
	SequenceID       uuid.UUID             `json:"sequence_id"`
	Status           domain.Status         `json:"status"`
	StepAtual        int                   `json:"step_atual"`
	ProximaExecucao  *time.Time            `json:"proxima_execucao"`
	StepsExecutados  []domain.ExecutedStep `json:"steps_executados"`
	TotalTouchpoints int                   `json:"total_touchpoints"`
	LastError        *string               `json:"last_error,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type ExecutionListResponse struct {
	Items []ExecutionResponse `json:"items"`
}

type SequenceListResponse struct {
	Items []SequenceResponse `json:"items"`
}

// StatusResponse answers GET /process-followups.
type StatusResponse struct {
	Success bool           `json:"success"`
	Stats   map[string]int `json:"stats"`
	Total   int            `json:"total"`
}

// ToSequence maps a create request, applying the 09:00-18:00 default window.
func (r CreateSequenceRequest) ToSequence(organizationID uuid.UUID) domain.Sequence {
	seq := domain.Sequence{
		OrganizationID: organizationID,
		Nome:           r.NomeSequencia,
		StartHour:      9,
		EndHour:        18,
		Timezone:       r.Timezone,
		IsActive:       true,
		Steps:          make([]domain.Step, 0, len(r.Steps)),
	}
	if r.StartHour != nil {
		seq.StartHour = *r.StartHour
	}
	if r.EndHour != nil {
		seq.EndHour = *r.EndHour
	}
	if r.IsActive != nil {
		seq.IsActive = *r.IsActive
	}
	for _, s := range r.Steps {
		seq.Steps = append(seq.Steps, domain.Step(s))
	}
	return seq
}

func NewSequenceResponse(s domain.Sequence) SequenceResponse {
	steps := s.Steps
	if steps == nil {
		steps = []domain.Step{}
	}
	return SequenceResponse{
		ID:             s.ID,
		NomeSequencia:  s.Nome,
		Steps:          steps,
		StartHour:      s.StartHour,
		EndHour:        s.EndHour,
		Timezone:       s.Timezone,
		LeadsAtingidos: s.LeadsAtingidos,
		IsActive:       s.IsActive,
	}
}

func NewExecutionResponse(e domain.Execution) ExecutionResponse {
	log := e.StepsExecutados
	if log == nil {
		log = []domain.ExecutedStep{}
	}
	return ExecutionResponse{
		ID:               e.ID,
		LeadID:           e.LeadID,
		SequenceID:       e.SequenceID,
		Status:           e.Status,
		StepAtual:        e.StepAtual,
		ProximaExecucao:  e.ProximaExecucao,
		StepsExecutados:  log,
		TotalTouchpoints: e.TotalTouchpoints,
		LastError:        e.LastError,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}
