// Package repository persists leads.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateParams is a new lead as captured by a form.
type CreateParams struct {
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
}

// QualificationParams is a scoring outcome to persist.
type QualificationParams struct {
	LeadID           uuid.UUID
	Score            int
	Temperatura      string
	InstantQualifier bool
	Breakdown        map[string]int
	RuleSet          string
	QualifiedAt      time.Time
}

// ListParams filters a lead listing.
type ListParams struct {
	OrganizationID uuid.UUID
	Status         string
	Temperatura    string
	Limit          int
}

// Store is the lead persistence the pipeline needs.
type Store interface {
	Create(ctx context.Context, p CreateParams) (domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, p ListParams) ([]domain.Lead, error)
	SaveQualification(ctx context.Context, p QualificationParams) (domain.Lead, error)
	Close(ctx context.Context, id uuid.UUID, status, reason string) (domain.Lead, error)
}

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a lead repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, organization_id, nome_completo, COALESCE(email, ''), COALESCE(telefone, ''),
	COALESCE(forma_pagamento, ''), COALESCE(urgencia, ''), COALESCE(situacao_negocio, ''),
	COALESCE(origem_conhecimento, ''), COALESCE(nome_indicacao, ''), COALESCE(indicado_por, ''),
	COALESCE(motivacao_principal, ''), COALESCE(categoria, ''), faturamento_atual::float8,
	completion_time_seconds, hesitation_points, attributes, status, score, temperatura,
	instant_qualifier, qualified_at, assigned_closer_id, assignment_reason, assigned_at,
	created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var attrs []byte
	if err := row.Scan(
		&l.ID, &l.OrganizationID, &l.NomeCompleto, &l.Email, &l.Telefone,
		&l.FormaPagamento, &l.Urgencia, &l.SituacaoNegocio,
		&l.OrigemConhecimento, &l.NomeIndicacao, &l.IndicadoPor,
		&l.MotivacaoPrincipal, &l.Categoria, &l.FaturamentoAtual,
		&l.CompletionTimeSeconds, &l.HesitationPoints, &attrs, &l.Status, &l.Score, &l.Temperatura,
		&l.InstantQualifier, &l.QualifiedAt, &l.AssignedCloserID, &l.AssignmentReason, &l.AssignedAt,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return domain.Lead{}, err
	}
	decoded, err := domain.DecodeAttributes(attrs)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("decode attributes: %w", err)
	}
	l.Attributes = decoded
	return l, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a lead in status novo.
func (r *Repository) Create(ctx context.Context, p CreateParams) (domain.Lead, error) {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	rawAttrs, err := json.Marshal(attrs)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode attributes: %w", err)
	}
	hesitation := p.HesitationPoints
	if hesitation == nil {
		hesitation = []string{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			organization_id, nome_completo, email, telefone, forma_pagamento, urgencia, situacao_negocio,
			origem_conhecimento, nome_indicacao, indicado_por, motivacao_principal, categoria,
			faturamento_atual, completion_time_seconds, hesitation_points, attributes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+leadColumns,
		p.OrganizationID, p.NomeCompleto, nullable(p.Email), nullable(p.Telefone), nullable(p.FormaPagamento),
		nullable(p.Urgencia), nullable(p.SituacaoNegocio), nullable(p.OrigemConhecimento), nullable(p.NomeIndicacao),
		nullable(p.IndicadoPor), nullable(p.MotivacaoPrincipal), nullable(p.Categoria),
		p.FaturamentoAtual, p.CompletionTimeSeconds, hesitation, rawAttrs, domain.StatusNew,
	)
	lead, err := scanLead(row)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByID loads one lead.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// List returns an organization's leads, newest first.
func (r *Repository) List(ctx context.Context, p ListParams) ([]domain.Lead, error) {
	if p.Limit < 1 || p.Limit > 200 {
		p.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE organization_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR temperatura = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, p.OrganizationID, p.Status, p.Temperatura, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return items, nil
}

// SaveQualification stores a score on an open lead. An assigned lead keeps
// its status; anything else becomes qualificado.
func (r *Repository) SaveQualification(ctx context.Context, p QualificationParams) (domain.Lead, error) {
	breakdown, err := json.Marshal(map[string]any{"rule_set": p.RuleSet, "categories": p.Breakdown})
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode breakdown: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET score = $2,
			temperatura = $3,
			instant_qualifier = $4,
			score_breakdown = $5,
			qualified_at = $6,
			status = CASE WHEN status = $7 THEN status ELSE $8 END,
			updated_at = now()
		WHERE id = $1 AND status NOT IN ($9, $10)
		RETURNING `+leadColumns,
		p.LeadID, p.Score, p.Temperatura, p.InstantQualifier, breakdown, p.QualifiedAt,
		domain.StatusAssigned, domain.StatusQualified, domain.StatusConverted, domain.StatusLost,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.missingOrClosed(ctx, p.LeadID)
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("save qualification: %w", err)
	}
	return lead, nil
}

// Close moves an open lead to a terminal status. The reason is kept in the
// lead's attributes under motivo_perda.
func (r *Repository) Close(ctx context.Context, id uuid.UUID, status, reason string) (domain.Lead, error) {
	if !domain.IsTerminal(status) {
		return domain.Lead{}, apperr.BadRequest("status is not terminal")
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $2,
			attributes = CASE WHEN $3 = '' THEN attributes ELSE attributes || jsonb_build_object('motivo_perda', $3::text) END,
			updated_at = now()
		WHERE id = $1 AND status NOT IN ($4, $5)
		RETURNING `+leadColumns,
		id, status, reason, domain.StatusConverted, domain.StatusLost,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.missingOrClosed(ctx, id)
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("close lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) missingOrClosed(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check lead: %w", err)
	}
	if !exists {
		return apperr.NotFound("lead not found")
	}
	return apperr.Conflict("lead is closed")
}

var _ Store = (*Repository)(nil)
