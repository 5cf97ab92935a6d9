package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadState is the part of a lead that assignment reads.
type LeadState struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Category         string
	Status           string
	Score            *int
	Temperature      *string
	InstantQualifier bool
	AssignedCloserID *uuid.UUID
	CreatedAt        time.Time
}

// Qualified reports whether scoring has run for the lead.
func (l LeadState) Qualified() bool {
	return l.Score != nil && l.Temperature != nil
}

// TakeSlotParams describes a slot claim.
type TakeSlotParams struct {
	LeadID           uuid.UUID
	CloserID         uuid.UUID
	PreviousCloserID *uuid.UUID
	Reason           Reason
}

// TakeOutcome is what happened to a slot claim.
type TakeOutcome int

const (
	// SlotTaken means the closer's count was incremented and the lead updated.
	SlotTaken TakeOutcome = iota
	// SlotFull means the closer filled up since the snapshot.
	SlotFull
	// LeadChanged means the lead's assignment changed since it was read.
	LeadChanged
)

// Store is the persistence assignment needs.
type Store interface {
	GetLead(ctx context.Context, leadID uuid.UUID) (LeadState, error)
	TakeSlot(ctx context.Context, p TakeSlotParams) (TakeOutcome, error)
	ReleaseSlot(ctx context.Context, leadID uuid.UUID) (*uuid.UUID, error)
	ListUnassigned(ctx context.Context, limit int) ([]LeadState, error)
}

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an assignment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadStateColumns = `id, organization_id, COALESCE(categoria, attributes->>'especialidade', ''), status,
	score, temperatura, instant_qualifier, assigned_closer_id, created_at`

func scanLeadState(row pgx.Row) (LeadState, error) {
	var l LeadState
	err := row.Scan(&l.ID, &l.OrganizationID, &l.Category, &l.Status,
		&l.Score, &l.Temperature, &l.InstantQualifier, &l.AssignedCloserID, &l.CreatedAt)
	return l, err
}

func (r *Repository) GetLead(ctx context.Context, leadID uuid.UUID) (LeadState, error) {
	l, err := scanLeadState(r.pool.QueryRow(ctx,
		`SELECT `+leadStateColumns+` FROM leads WHERE id = $1`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadState{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return LeadState{}, fmt.Errorf("get lead for assignment: %w", err)
	}
	return l, nil
}

// TakeSlot increments the closer's count only while it is below capacity and
// moves the lead only if its assignment is still what the caller saw. Both
// happen in one transaction; a forced move also frees the previous slot.
func (r *Repository) TakeSlot(ctx context.Context, p TakeSlotParams) (TakeOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SlotFull, fmt.Errorf("take slot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE closers
		SET active_count = active_count + 1, updated_at = now()
		WHERE id = $1 AND is_active AND active_count < capacity
	`, p.CloserID)
	if err != nil {
		return SlotFull, fmt.Errorf("take slot: increment closer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return SlotFull, nil
	}

	var previousReleased *time.Time
	err = tx.QueryRow(ctx, `
		WITH prev AS (
			SELECT id, slot_released_at FROM leads WHERE id = $1 FOR UPDATE
		)
		UPDATE leads l
		SET assigned_closer_id = $2,
			assignment_reason = $3,
			assigned_at = now(),
			slot_released_at = NULL,
			status = CASE WHEN l.status IN ('novo', 'qualificado') THEN 'atribuido' ELSE l.status END,
			updated_at = now()
		FROM prev
		WHERE l.id = prev.id AND l.assigned_closer_id IS NOT DISTINCT FROM $4
		RETURNING prev.slot_released_at
	`, p.LeadID, p.CloserID, string(p.Reason), p.PreviousCloserID).Scan(&previousReleased)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadChanged, nil
	}
	if err != nil {
		return SlotFull, fmt.Errorf("take slot: update lead: %w", err)
	}

	if p.PreviousCloserID != nil && previousReleased == nil {
		if _, err := tx.Exec(ctx, `
			UPDATE closers
			SET active_count = GREATEST(active_count - 1, 0), updated_at = now()
			WHERE id = $1
		`, *p.PreviousCloserID); err != nil {
			return SlotFull, fmt.Errorf("take slot: release previous closer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return SlotFull, fmt.Errorf("take slot: commit: %w", err)
	}
	return SlotTaken, nil
}

// ReleaseSlot frees the lead's closer slot once. It returns the closer whose
// count was decremented, or nil if there was nothing to release.
func (r *Repository) ReleaseSlot(ctx context.Context, leadID uuid.UUID) (*uuid.UUID, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var closerID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE leads
		SET slot_released_at = now(), updated_at = now()
		WHERE id = $1 AND assigned_closer_id IS NOT NULL AND slot_released_at IS NULL
		RETURNING assigned_closer_id
	`, leadID).Scan(&closerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("release slot: mark lead: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE closers
		SET active_count = GREATEST(active_count - 1, 0), updated_at = now()
		WHERE id = $1
	`, closerID); err != nil {
		return nil, fmt.Errorf("release slot: decrement closer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("release slot: commit: %w", err)
	}
	return &closerID, nil
}

// ListUnassigned returns qualified open leads without a closer, oldest first.
func (r *Repository) ListUnassigned(ctx context.Context, limit int) ([]LeadState, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadStateColumns+`
		FROM leads
		WHERE assigned_closer_id IS NULL
			AND qualified_at IS NOT NULL
			AND status NOT IN ('convertido', 'perdido')
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unassigned leads: %w", err)
	}
	defer rows.Close()

	items := make([]LeadState, 0)
	for rows.Next() {
		l, err := scanLeadState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unassigned lead: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unassigned leads: %w", err)
	}
	return items, nil
}

var _ Store = (*Repository)(nil)
