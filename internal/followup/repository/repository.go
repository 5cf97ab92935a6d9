// Package repository persists follow-up sequences and executions.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/followup/domain"
	leaddomain "leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Claimed is a due execution leased to one batch together with everything
// needed to process it.
type Claimed struct {
	Execution domain.Execution
	Sequence  domain.Sequence
	Lead      leaddomain.Lead
	Token     uuid.UUID
	// Fault is set when the stored row could not be decoded. The execution
	// is still leased so the batch can park it.
	Fault error
}

// ClaimParams selects and leases due executions.
type ClaimParams struct {
	Now   time.Time
	Limit int
	Lease time.Duration
	Token uuid.UUID
}

// ProgressParams is the write-back after a delivered step.
type ProgressParams struct {
	ExecutionID uuid.UUID
	SequenceID  uuid.UUID
	Token       uuid.UUID
	Progress    domain.Progress
}

// EnrollParams starts an execution.
type EnrollParams struct {
	LeadID     uuid.UUID
	SequenceID uuid.UUID
	FirstDue   time.Time
}

// Store is the persistence the sequencer needs. Every write-back that takes
// a token only applies while that token still holds the execution's lease
// and the execution is still open.
type Store interface {
	ClaimDue(ctx context.Context, p ClaimParams) ([]Claimed, error)
	RenewClaim(ctx context.Context, executionID, token uuid.UUID, now, until time.Time) (domain.Status, bool, error)
	Park(ctx context.Context, executionID, token uuid.UUID, message string, until time.Time) (bool, error)
	SaveProgress(ctx context.Context, p ProgressParams) (bool, error)
	Postpone(ctx context.Context, executionID, token uuid.UUID) (bool, error)
	RecordFailure(ctx context.Context, executionID, token uuid.UUID, message string) (bool, error)
	Complete(ctx context.Context, executionID, token uuid.UUID) (bool, error)
	ReleaseClaim(ctx context.Context, executionID, token uuid.UUID) error

	CreateSequence(ctx context.Context, seq domain.Sequence) (domain.Sequence, error)
	GetSequence(ctx context.Context, id uuid.UUID) (domain.Sequence, error)
	ListSequences(ctx context.Context, organizationID uuid.UUID) ([]domain.Sequence, error)
	Enroll(ctx context.Context, p EnrollParams) (domain.Execution, error)
	GetExecution(ctx context.Context, id uuid.UUID) (domain.Execution, error)
	ListExecutionsByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Execution, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Execution, error)
	CancelForLead(ctx context.Context, leadID uuid.UUID) (int64, error)
}

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a follow-up repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const executionColumns = `id, organization_id, lead_id, sequence_id, status, step_atual, proxima_execucao,
	steps_executados, total_touchpoints, last_error, created_at, updated_at`

const sequenceColumns = `id, organization_id, nome_sequencia, steps, start_hour, end_hour,
	COALESCE(timezone, ''), leads_atingidos, is_active`

// ClaimDue leases up to p.Limit due executions of active sequences. Rows
// locked by a concurrent claim are skipped and rows with a live lease are
// not due.
func (r *Repository) ClaimDue(ctx context.Context, p ClaimParams) ([]Claimed, error) {
	if p.Limit < 1 {
		p.Limit = 50
	}
	until := p.Now.Add(p.Lease)

	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT e.id
			FROM followup_executions e
			JOIN followup_sequences s ON s.id = e.sequence_id
			WHERE e.status IN ('active', 'postponed')
				AND e.proxima_execucao <= $1
				AND (e.claimed_until IS NULL OR e.claimed_until < $1)
				AND s.is_active
			ORDER BY e.proxima_execucao ASC
			LIMIT $2
			FOR UPDATE OF e SKIP LOCKED
		), claimed AS (
			UPDATE followup_executions e
			SET claimed_until = $3, claim_token = $4, updated_at = now()
			FROM due
			WHERE e.id = due.id
			RETURNING e.id, e.organization_id, e.lead_id, e.sequence_id, e.status, e.step_atual,
				e.proxima_execucao, e.steps_executados, e.total_touchpoints, e.last_error, e.created_at, e.updated_at
		)
		SELECT c.id, c.organization_id, c.lead_id, c.sequence_id, c.status, c.step_atual,
			c.proxima_execucao, c.steps_executados, c.total_touchpoints, c.last_error, c.created_at, c.updated_at,
			s.id, s.organization_id, s.nome_sequencia, s.steps, s.start_hour, s.end_hour,
			COALESCE(s.timezone, ''), s.leads_atingidos, s.is_active,
			l.id, l.organization_id, l.nome_completo, COALESCE(l.email, ''), COALESCE(l.telefone, ''),
			COALESCE(l.categoria, ''), l.attributes, l.status, l.created_at
		FROM claimed c
		JOIN followup_sequences s ON s.id = c.sequence_id
		JOIN leads l ON l.id = c.lead_id
		ORDER BY c.proxima_execucao ASC
	`, p.Now, p.Limit, until, p.Token)
	if err != nil {
		return nil, fmt.Errorf("claim due executions: %w", err)
	}
	defer rows.Close()

	items := make([]Claimed, 0, p.Limit)
	for rows.Next() {
		var (
			item      Claimed
			execLog   []byte
			steps     []byte
			status    string
			leadAttrs []byte
		)
		e := &item.Execution
		s := &item.Sequence
		l := &item.Lead
		if err := rows.Scan(
			&e.ID, &e.OrganizationID, &e.LeadID, &e.SequenceID, &status, &e.StepAtual,
			&e.ProximaExecucao, &execLog, &e.TotalTouchpoints, &e.LastError, &e.CreatedAt, &e.UpdatedAt,
			&s.ID, &s.OrganizationID, &s.Nome, &steps, &s.StartHour, &s.EndHour,
			&s.Timezone, &s.LeadsAtingidos, &s.IsActive,
			&l.ID, &l.OrganizationID, &l.NomeCompleto, &l.Email, &l.Telefone,
			&l.Categoria, &leadAttrs, &l.Status, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claimed execution: %w", err)
		}
		e.Status = domain.Status(status)
		item.Fault = decodeClaimed(&item, execLog, steps, leadAttrs)
		item.Token = p.Token
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim due executions: %w", err)
	}
	return items, nil
}

// decodeClaimed fills the JSON columns of a claimed row.
func decodeClaimed(item *Claimed, execLog, steps, leadAttrs []byte) error {
	if err := decodeJSON(execLog, &item.Execution.StepsExecutados); err != nil {
		return fmt.Errorf("decode steps_executados: %w", err)
	}
	if err := decodeJSON(steps, &item.Sequence.Steps); err != nil {
		return fmt.Errorf("decode sequence steps: %w", err)
	}
	attrs, err := leaddomain.DecodeAttributes(leadAttrs)
	if err != nil {
		return fmt.Errorf("decode lead attributes: %w", err)
	}
	item.Lead.Attributes = attrs
	return nil
}

// RenewClaim is the last look before a step leaves. When token still holds
// a live lease on an open execution the lease is pushed out to until in the
// same statement, so the send runs under a fresh lease. It returns the
// execution's current status and whether the lease was renewed.
func (r *Repository) RenewClaim(ctx context.Context, executionID, token uuid.UUID, now, until time.Time) (domain.Status, bool, error) {
	var status string
	var held bool
	err := r.pool.QueryRow(ctx, `
		WITH renewed AS (
			UPDATE followup_executions
			SET claimed_until = $4
			WHERE id = $1
				AND claim_token = $2
				AND claimed_until > $3
				AND status IN ('active', 'postponed')
			RETURNING id
		)
		SELECT e.status, EXISTS (SELECT 1 FROM renewed)
		FROM followup_executions e
		WHERE e.id = $1
	`, executionID, token, now, until).Scan(&status, &held)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, apperr.NotFound("execution not found")
	}
	if err != nil {
		return "", false, fmt.Errorf("renew claim: %w", err)
	}
	return domain.Status(status), held, nil
}

// SaveProgress records a delivered step. The sequence's reach counter moves
// in the same transaction when the first step completed.
func (r *Repository) SaveProgress(ctx context.Context, p ProgressParams) (bool, error) {
	entry, err := json.Marshal([]domain.ExecutedStep{p.Progress.Entry})
	if err != nil {
		return false, fmt.Errorf("encode executed step: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("save progress: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE followup_executions
		SET step_atual = $3,
			status = $4,
			proxima_execucao = $5,
			steps_executados = steps_executados || $6::jsonb,
			total_touchpoints = $7,
			last_error = NULL,
			claimed_until = NULL,
			claim_token = NULL,
			updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status IN ('active', 'postponed')
	`, p.ExecutionID, p.Token, p.Progress.StepAtual, string(p.Progress.Status),
		p.Progress.ProximaExecucao, entry, p.Progress.TotalTouchpoints)
	if err != nil {
		return false, fmt.Errorf("save progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if p.Progress.FirstStep {
		if _, err := tx.Exec(ctx, `
			UPDATE followup_sequences
			SET leads_atingidos = leads_atingidos + 1, updated_at = now()
			WHERE id = $1
		`, p.SequenceID); err != nil {
			return false, fmt.Errorf("increment leads_atingidos: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("save progress: %w", err)
	}
	return true, nil
}

// Postpone releases the lease and marks the execution postponed without
// moving its step or due time.
func (r *Repository) Postpone(ctx context.Context, executionID, token uuid.UUID) (bool, error) {
	return r.execClaimed(ctx, "postpone execution", `
		UPDATE followup_executions
		SET status = 'postponed', claimed_until = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status IN ('active', 'postponed')
	`, executionID, token)
}

// RecordFailure keeps the step and due time so the next cycle retries.
func (r *Repository) RecordFailure(ctx context.Context, executionID, token uuid.UUID, message string) (bool, error) {
	return r.execClaimed(ctx, "record failure", `
		UPDATE followup_executions
		SET last_error = $3, claimed_until = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status IN ('active', 'postponed')
	`, executionID, token, message)
}

// Complete finishes an execution whose sequence has no step left.
func (r *Repository) Complete(ctx context.Context, executionID, token uuid.UUID) (bool, error) {
	return r.execClaimed(ctx, "complete execution", `
		UPDATE followup_executions
		SET status = 'completed', proxima_execucao = NULL, claimed_until = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status IN ('active', 'postponed')
	`, executionID, token)
}

// Park records message and keeps the execution out of claims until until
// without holding a token, so a cancel still applies while it waits.
func (r *Repository) Park(ctx context.Context, executionID, token uuid.UUID, message string, until time.Time) (bool, error) {
	return r.execClaimed(ctx, "park execution", `
		UPDATE followup_executions
		SET last_error = $3, claimed_until = $4, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND claim_token = $2 AND status IN ('active', 'postponed')
	`, executionID, token, message, until)
}

// ReleaseClaim drops a lease without touching anything else.
func (r *Repository) ReleaseClaim(ctx context.Context, executionID, token uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followup_executions
		SET claimed_until = NULL, claim_token = NULL
		WHERE id = $1 AND claim_token = $2
	`, executionID, token)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

func (r *Repository) execClaimed(ctx context.Context, op, query string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateSequence stores a new sequence definition.
func (r *Repository) CreateSequence(ctx context.Context, seq domain.Sequence) (domain.Sequence, error) {
	steps, err := json.Marshal(seq.Steps)
	if err != nil {
		return domain.Sequence{}, fmt.Errorf("encode steps: %w", err)
	}
	var tz *string
	if seq.Timezone != "" {
		tz = &seq.Timezone
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO followup_sequences (organization_id, nome_sequencia, steps, start_hour, end_hour, timezone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+sequenceColumns,
		seq.OrganizationID, seq.Nome, steps, seq.StartHour, seq.EndHour, tz, seq.IsActive)
	created, err := scanSequence(row)
	if err != nil {
		return domain.Sequence{}, fmt.Errorf("create sequence: %w", err)
	}
	return created, nil
}

// GetSequence loads one sequence.
func (r *Repository) GetSequence(ctx context.Context, id uuid.UUID) (domain.Sequence, error) {
	seq, err := scanSequence(r.pool.QueryRow(ctx, `SELECT `+sequenceColumns+` FROM followup_sequences WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Sequence{}, apperr.NotFound("sequence not found")
	}
	if err != nil {
		return domain.Sequence{}, fmt.Errorf("get sequence: %w", err)
	}
	return seq, nil
}

// ListSequences returns an organization's sequences by name.
func (r *Repository) ListSequences(ctx context.Context, organizationID uuid.UUID) ([]domain.Sequence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sequenceColumns+`
		FROM followup_sequences
		WHERE organization_id = $1
		ORDER BY nome_sequencia ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Sequence, 0)
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		items = append(items, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	return items, nil
}

// Enroll starts an execution for a lead that is still open, on an active
// sequence of the same organization. A second open enrollment of the same
// lead in the same sequence is a conflict.
func (r *Repository) Enroll(ctx context.Context, p EnrollParams) (domain.Execution, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO followup_executions (organization_id, lead_id, sequence_id, status, step_atual, proxima_execucao)
		SELECT l.organization_id, l.id, s.id, 'active', 0, $3
		FROM leads l
		JOIN followup_sequences s ON s.organization_id = l.organization_id
		WHERE l.id = $1 AND s.id = $2 AND s.is_active
			AND l.status NOT IN ('convertido', 'perdido')
		RETURNING `+executionColumns,
		p.LeadID, p.SequenceID, p.FirstDue)
	exec, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Execution{}, apperr.NotFound("open lead or active sequence not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.Execution{}, apperr.Conflict("lead already enrolled in this sequence")
	}
	if err != nil {
		return domain.Execution{}, fmt.Errorf("enroll: %w", err)
	}
	return exec, nil
}

// GetExecution loads one execution.
func (r *Repository) GetExecution(ctx context.Context, id uuid.UUID) (domain.Execution, error) {
	exec, err := scanExecution(r.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM followup_executions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Execution{}, apperr.NotFound("execution not found")
	}
	if err != nil {
		return domain.Execution{}, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

// ListExecutionsByLead returns a lead's executions, newest first.
func (r *Repository) ListExecutionsByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Execution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+executionColumns+`
		FROM followup_executions
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Execution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		items = append(items, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return items, nil
}

// Cancel stops an open execution. Cancelling an already cancelled execution
// returns it unchanged; a completed one is a conflict.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (domain.Execution, error) {
	exec, err := scanExecution(r.pool.QueryRow(ctx, `
		UPDATE followup_executions
		SET status = 'cancelled', proxima_execucao = NULL, claimed_until = NULL, claim_token = NULL, updated_at = now()
		WHERE id = $1 AND status IN ('active', 'postponed')
		RETURNING `+executionColumns, id))
	if err == nil {
		return exec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Execution{}, fmt.Errorf("cancel execution: %w", err)
	}

	current, err := r.GetExecution(ctx, id)
	if err != nil {
		return domain.Execution{}, err
	}
	if current.Status == domain.StatusCancelled {
		return current, nil
	}
	return domain.Execution{}, apperr.Conflict("execution already completed")
}

// CancelForLead stops every open execution of a lead.
func (r *Repository) CancelForLead(ctx context.Context, leadID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup_executions
		SET status = 'cancelled', proxima_execucao = NULL, claimed_until = NULL, claim_token = NULL, updated_at = now()
		WHERE lead_id = $1 AND status IN ('active', 'postponed')
	`, leadID)
	if err != nil {
		return 0, fmt.Errorf("cancel lead executions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSequence(row pgx.Row) (domain.Sequence, error) {
	var s domain.Sequence
	var steps []byte
	if err := row.Scan(&s.ID, &s.OrganizationID, &s.Nome, &steps, &s.StartHour, &s.EndHour,
		&s.Timezone, &s.LeadsAtingidos, &s.IsActive); err != nil {
		return domain.Sequence{}, err
	}
	if err := decodeJSON(steps, &s.Steps); err != nil {
		return domain.Sequence{}, fmt.Errorf("decode steps: %w", err)
	}
	return s, nil
}

func scanExecution(row pgx.Row) (domain.Execution, error) {
	var e domain.Execution
	var status string
	var log []byte
	if err := row.Scan(&e.ID, &e.OrganizationID, &e.LeadID, &e.SequenceID, &status, &e.StepAtual,
		&e.ProximaExecucao, &log, &e.TotalTouchpoints, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return domain.Execution{}, err
	}
	e.Status = domain.Status(status)
	if err := decodeJSON(log, &e.StepsExecutados); err != nil {
		return domain.Execution{}, fmt.Errorf("decode steps_executados: %w", err)
	}
	return e, nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

var _ Store = (*Repository)(nil)
