package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CloserRow is a closer as stored.
type CloserRow struct {
	ID              uuid.UUID
	Name            string
	Capacity        int
	ActiveCount     int
	Specializations []string
	IsActive        bool
}

// SequenceReach is one sequence's aggregate counter.
type SequenceReach struct {
	SequenceID     uuid.UUID `json:"sequence_id"`
	Name           string    `json:"nome_sequencia"`
	LeadsAtingidos int       `json:"leads_atingidos"`
	IsActive       bool      `json:"is_active"`
}

// Reader is the read-only store behind the reporting view.
type Reader interface {
	ListClosers(ctx context.Context, organizationID uuid.UUID) ([]CloserRow, error)
	CountExecutionsByStatus(ctx context.Context, organizationID *uuid.UUID) (map[string]int, error)
	ListSequenceReach(ctx context.Context, organizationID *uuid.UUID) ([]SequenceReach, error)
}

// Repository reads reporting data from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stats repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListClosers returns the organization's closers in stable creation order.
func (r *Repository) ListClosers(ctx context.Context, organizationID uuid.UUID) ([]CloserRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome_completo, capacity, active_count, specializations, is_active
		FROM closers
		WHERE organization_id = $1
		ORDER BY created_at ASC, id ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list closers: %w", err)
	}
	defer rows.Close()

	items := make([]CloserRow, 0)
	for rows.Next() {
		var item CloserRow
		if err := rows.Scan(&item.ID, &item.Name, &item.Capacity, &item.ActiveCount, &item.Specializations, &item.IsActive); err != nil {
			return nil, fmt.Errorf("scan closer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list closers: %w", err)
	}
	return items, nil
}

// CountExecutionsByStatus groups follow-up executions by status. A nil
// organization counts across all organizations.
func (r *Repository) CountExecutionsByStatus(ctx context.Context, organizationID *uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM followup_executions
		WHERE ($1::uuid IS NULL OR organization_id = $1)
		GROUP BY status
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan execution count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	return counts, nil
}

// ListSequenceReach returns leads_atingidos per sequence.
func (r *Repository) ListSequenceReach(ctx context.Context, organizationID *uuid.UUID) ([]SequenceReach, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, nome_sequencia, leads_atingidos, is_active
		FROM followup_sequences
		WHERE ($1::uuid IS NULL OR organization_id = $1)
		ORDER BY nome_sequencia ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list sequence reach: %w", err)
	}
	defer rows.Close()

	items := make([]SequenceReach, 0)
	for rows.Next() {
		var item SequenceReach
		if err := rows.Scan(&item.SequenceID, &item.Name, &item.LeadsAtingidos, &item.IsActive); err != nil {
			return nil, fmt.Errorf("scan sequence reach: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sequence reach: %w", err)
	}
	return items, nil
}

var _ Reader = (*Repository)(nil)
