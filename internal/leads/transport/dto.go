package transport

import (
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	NomeCompleto          string            `json:"nome_completo" validate:"required,min=2,max=200"`
	Email                 string            `json:"email" validate:"omitempty,email,max=254"`
	Telefone              string            `json:"telefone" validate:"required_without=Email,max=25"`
	FormaPagamento        string            `json:"forma_pagamento" validate:"omitempty,max=50"`
	Urgencia              string            `json:"urgencia" validate:"omitempty,max=50"`
	SituacaoNegocio       string            `json:"situacao_negocio" validate:"omitempty,max=80"`
	OrigemConhecimento    string            `json:"origem_conhecimento" validate:"omitempty,max=80"`
	NomeIndicacao         string            `json:"nome_indicacao" validate:"omitempty,max=200"`
	IndicadoPor           string            `json:"indicado_por" validate:"omitempty,max=200"`
	MotivacaoPrincipal    string            `json:"motivacao_principal" validate:"omitempty,max=1000"`
	Categoria             string            `json:"categoria" validate:"omitempty,max=80"`
	FaturamentoAtual      *float64          `json:"faturamento_atual" validate:"omitempty,gte=0"`
	CompletionTimeSeconds *int              `json:"completion_time_seconds" validate:"omitempty,gte=0"`
	HesitationPoints      []string          `json:"hesitation_points" validate:"omitempty,max=100,dive,max=200"`
	Attributes            map[string]string `json:"attributes" validate:"omitempty,max=100"`
}

type AssignRequest struct {
	Force bool `json:"force"`
}

type LostRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// ToParams maps the request onto repository parameters.
func (r CreateLeadRequest) ToParams(organizationID uuid.UUID) repository.CreateParams {
	return repository.CreateParams{
		OrganizationID:        organizationID,
		NomeCompleto:          r.NomeCompleto,
		Email:                 r.Email,
		Telefone:              r.Telefone,
		FormaPagamento:        r.FormaPagamento,
		Urgencia:              r.Urgencia,
		SituacaoNegocio:       r.SituacaoNegocio,
		OrigemConhecimento:    r.OrigemConhecimento,
		NomeIndicacao:         r.NomeIndicacao,
		IndicadoPor:           r.IndicadoPor,
		MotivacaoPrincipal:    r.MotivacaoPrincipal,
		Categoria:             r.Categoria,
		FaturamentoAtual:      r.FaturamentoAtual,
		CompletionTimeSeconds: r.CompletionTimeSeconds,
		HesitationPoints:      r.HesitationPoints,
		Attributes:            r.Attributes,
	}
}

// Response DTOs
type LeadResponse struct {
	ID               uuid.UUID         `json:"id"`
	OrganizationID   uuid.UUID         `json:"organization_id"`
	NomeCompleto     string            `json:"nome_completo"`
	Email            string            `json:"email,omitempty"`
	Telefone         string            `json:"telefone,omitempty"`
	Categoria        string            `json:"categoria,omitempty"`
	Status           string            `json:"status"`
	Score            *int              `json:"score"`
	Temperatura      *string           `json:"temperatura"`
	InstantQualifier bool              `json:"instant_qualifier"`
	QualifiedAt      *time.Time        `json:"qualified_at,omitempty"`
	AssignedCloserID *uuid.UUID        `json:"assigned_closer_id,omitempty"`
	AssignmentReason *string           `json:"assignment_reason,omitempty"`
	AssignedAt       *time.Time        `json:"assigned_at,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
}

func NewLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:               l.ID,
		OrganizationID:   l.OrganizationID,
		NomeCompleto:     l.NomeCompleto,
		Email:            l.Email,
		Telefone:         l.Telefone,
		Categoria:        l.Categoria,
		Status:           l.Status,
		Score:            l.Score,
		Temperatura:      l.Temperatura,
		InstantQualifier: l.InstantQualifier,
		QualifiedAt:      l.QualifiedAt,
		AssignedCloserID: l.AssignedCloserID,
		AssignmentReason: l.AssignmentReason,
		AssignedAt:       l.AssignedAt,
		Attributes:       l.Attributes,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}
