package domain

import (
	"strconv"
	"strings"
	"time"

	"leadflow_backend/internal/qualification/scoring"

	"github.com/google/uuid"
)

// Lead is a prospect captured by a qualification form.
type Lead struct {
	ID                    uuid.UUID
	OrganizationID        uuid.UUID
	NomeCompleto          string
	Email                 string
	Telefone              string
	FormaPagamento        string
	Urgencia              string
	SituacaoNegocio       string
	OrigemConhecimento    string
	NomeIndicacao         string
	IndicadoPor           string
	MotivacaoPrincipal    string
	Categoria             string
	FaturamentoAtual      *float64
	CompletionTimeSeconds *int
	HesitationPoints      []string
	Attributes            map[string]string
	Status                string
	Score                 *int
	Temperatura           *string
	InstantQualifier      bool
	QualifiedAt           *time.Time
	AssignedCloserID      *uuid.UUID
	AssignmentReason      *string
	AssignedAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PrimeiroNome returns the first word of the lead's name.
func (l Lead) PrimeiroNome() string {
	if fields := strings.Fields(l.NomeCompleto); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// ScoringAttributes flattens the lead into the map the scoring engine reads.
// Free attributes come first so fixed form fields win on key clashes. now
// anchors the derived form_age_hours value.
func (l Lead) ScoringAttributes(now time.Time) scoring.Attributes {
	attrs := make(scoring.Attributes, len(l.Attributes)+16)
	for k, v := range l.Attributes {
		attrs[k] = v
	}

	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			attrs[key] = value
		}
	}
	set("nome_completo", l.NomeCompleto)
	set("email", l.Email)
	set("telefone", l.Telefone)
	set("forma_pagamento", l.FormaPagamento)
	set("urgencia", l.Urgencia)
	set("situacao_negocio", l.SituacaoNegocio)
	set("origem_conhecimento", l.OrigemConhecimento)
	set("nome_indicacao", l.NomeIndicacao)
	set("indicado_por", l.IndicadoPor)
	set("motivacao_principal", l.MotivacaoPrincipal)
	set("categoria", l.Categoria)

	if l.FaturamentoAtual != nil {
		attrs["faturamento_atual"] = strconv.FormatFloat(*l.FaturamentoAtual, 'f', -1, 64)
	}
	if l.CompletionTimeSeconds != nil {
		attrs["completion_time_seconds"] = strconv.Itoa(*l.CompletionTimeSeconds)
	}
	attrs["hesitation_count"] = strconv.Itoa(len(l.HesitationPoints))
	if !l.CreatedAt.IsZero() {
		age := now.Sub(l.CreatedAt).Hours()
		if age < 0 {
			age = 0
		}
		attrs["form_age_hours"] = strconv.FormatFloat(age, 'f', 2, 64)
	}
	return attrs
}

// TemplateValues returns the placeholder values used by follow-up messages.
func (l Lead) TemplateValues() map[string]string {
	values := make(map[string]string, len(l.Attributes)+8)
	for k, v := range l.Attributes {
		values[k] = v
	}
	values["nome"] = l.NomeCompleto
	values["primeiro_nome"] = l.PrimeiroNome()
	values["email"] = l.Email
	values["telefone"] = l.Telefone
	if l.Categoria != "" {
		values["categoria"] = l.Categoria
	}
	return values
}
