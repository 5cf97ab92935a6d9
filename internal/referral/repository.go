package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	actionReferral    = "indicacao"
	createdBySystem   = "sistema_automatico"
	pgUniqueViolation = "23505"
)

// ErrAlreadyAwarded is returned when a non-forced award for the lead exists.
var ErrAlreadyAwarded = errors.New("referral already awarded")

// Lead is the part of a lead referral points read.
type Lead struct {
	ID           uuid.UUID
	NomeCompleto string
	Status       string
	IndicadoPor  string
	CreatedAt    time.Time
}

// Mentor is a mentee who can earn referral points.
type Mentor struct {
	ID             uuid.UUID
	NomeCompleto   string
	PontuacaoTotal int
}

// Point is one awarded point row.
type Point struct {
	ID          uuid.UUID `json:"id"`
	MentoradoID uuid.UUID `json:"mentorado_id"`
	LeadID      uuid.UUID `json:"lead_id"`
	TipoAcao    string    `json:"tipo_acao"`
	Pontos      int       `json:"pontos"`
	Descricao   string    `json:"descricao"`
	CriadoPor   string    `json:"criado_por"`
	CreatedAt   time.Time `json:"created_at"`
}

// AwardParams describes one award.
type AwardParams struct {
	MentorID  uuid.UUID
	LeadID    uuid.UUID
	Descricao string
	Forced    bool
}

// ReferredLead is a recent lead with a referrer and whether it was awarded.
type ReferredLead struct {
	Lead
	Awarded bool
}

// Store is the persistence referral points need.
type Store interface {
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	HasAward(ctx context.Context, leadID uuid.UUID) (bool, error)
	FindMentorByID(ctx context.Context, id uuid.UUID) (Mentor, bool, error)
	FindMentorByName(ctx context.Context, name string) (Mentor, bool, error)
	Award(ctx context.Context, p AwardParams) (Point, int, error)
	ListRecentReferred(ctx context.Context, limit int) ([]ReferredLead, error)
}

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a referral repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (Lead, error) {
	var l Lead
	err := r.pool.QueryRow(ctx, `
		SELECT id, nome_completo, status, COALESCE(indicado_por, ''), created_at
		FROM leads WHERE id = $1
	`, id).Scan(&l.ID, &l.NomeCompleto, &l.Status, &l.IndicadoPor, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *Repository) HasAward(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pontuacao_mentorados WHERE lead_id = $1 AND tipo_acao = $2
		)
	`, leadID, actionReferral).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check award: %w", err)
	}
	return exists, nil
}

func (r *Repository) FindMentorByID(ctx context.Context, id uuid.UUID) (Mentor, bool, error) {
	return r.findMentor(ctx, `SELECT id, nome_completo, pontuacao_total FROM mentorados WHERE id = $1`, id)
}

// FindMentorByName prefers a case-insensitive exact match and falls back to
// the oldest partial match.
func (r *Repository) FindMentorByName(ctx context.Context, name string) (Mentor, bool, error) {
	return r.findMentor(ctx, `
		SELECT id, nome_completo, pontuacao_total
		FROM mentorados
		WHERE nome_completo ILIKE '%' || $1 || '%'
		ORDER BY (lower(nome_completo) = lower($1)) DESC, created_at ASC
		LIMIT 1
	`, name)
}

func (r *Repository) findMentor(ctx context.Context, query string, arg any) (Mentor, bool, error) {
	var m Mentor
	err := r.pool.QueryRow(ctx, query, arg).Scan(&m.ID, &m.NomeCompleto, &m.PontuacaoTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mentor{}, false, nil
	}
	if err != nil {
		return Mentor{}, false, fmt.Errorf("find mentor: %w", err)
	}
	return m, true, nil
}

// Award inserts one point and recomputes the mentor's total in the same
// transaction. A duplicate non-forced award returns ErrAlreadyAwarded.
func (r *Repository) Award(ctx context.Context, p AwardParams) (Point, int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Point{}, 0, fmt.Errorf("award: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var pt Point
	err = tx.QueryRow(ctx, `
		INSERT INTO pontuacao_mentorados (mentorado_id, lead_id, tipo_acao, pontos, descricao, forced, criado_por)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		RETURNING id, mentorado_id, lead_id, tipo_acao, pontos, COALESCE(descricao, ''), criado_por, created_at
	`, p.MentorID, p.LeadID, actionReferral, p.Descricao, p.Forced, createdBySystem).Scan(
		&pt.ID, &pt.MentoradoID, &pt.LeadID, &pt.TipoAcao, &pt.Pontos, &pt.Descricao, &pt.CriadoPor, &pt.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return Point{}, 0, ErrAlreadyAwarded
	}
	if err != nil {
		return Point{}, 0, fmt.Errorf("insert point: %w", err)
	}

	var total int
	err = tx.QueryRow(ctx, `
		UPDATE mentorados
		SET pontuacao_total = (SELECT COALESCE(SUM(pontos), 0) FROM pontuacao_mentorados WHERE mentorado_id = $1)
		WHERE id = $1
		RETURNING pontuacao_total
	`, p.MentorID).Scan(&total)
	if err != nil {
		return Point{}, 0, fmt.Errorf("recompute total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Point{}, 0, fmt.Errorf("award: %w", err)
	}
	return pt, total, nil
}

// ListRecentReferred returns the newest leads with a referrer.
func (r *Repository) ListRecentReferred(ctx context.Context, limit int) ([]ReferredLead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.nome_completo, l.status, l.indicado_por, l.created_at,
			EXISTS (
				SELECT 1 FROM pontuacao_mentorados p WHERE p.lead_id = l.id AND p.tipo_acao = $2
			)
		FROM leads l
		WHERE l.indicado_por IS NOT NULL AND l.indicado_por <> ''
		ORDER BY l.created_at DESC
		LIMIT $1
	`, limit, actionReferral)
	if err != nil {
		return nil, fmt.Errorf("list referred leads: %w", err)
	}
	defer rows.Close()

	items := make([]ReferredLead, 0, limit)
	for rows.Next() {
		var item ReferredLead
		if err := rows.Scan(&item.ID, &item.NomeCompleto, &item.Status, &item.IndicadoPor, &item.CreatedAt, &item.Awarded); err != nil {
			return nil, fmt.Errorf("scan referred lead: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list referred leads: %w", err)
	}
	return items, nil
}

var _ Store = (*Repository)(nil)
