package escalation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists escalation records in PostgreSQL. Insert runs
// inside the caller's transaction so the case update and its audit row
// commit or roll back together; the transaction boundary is owned by
// the case lifecycle service.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed escalation repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one escalation record inside the given transaction.
func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	const insertSQL = `
		INSERT INTO escalations (case_id, escalated_by, escalated_to, previous_status, new_status, previous_priority, new_priority, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, case_id, escalated_by, escalated_to, previous_status::text, new_status::text, previous_priority::text, new_priority::text, reason, created_at
	`

	row := tx.QueryRow(ctx, insertSQL,
		rec.CaseID,
		rec.EscalatedBy,
		rec.EscalatedTo,
		rec.PreviousStatus,
		rec.NewStatus,
		rec.PreviousPriority,
		rec.NewPriority,
		rec.Reason,
	)

	out, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("escalation: insert: %w", err)
	}
	return out, nil
}

// ListByCase returns every escalation for the case in ascending creation
// order. A case with no escalations yields an empty slice, not an error.
func (r *PGRepository) ListByCase(ctx context.Context, caseID string) ([]Record, error) {
	const query = `
		SELECT id, case_id, escalated_by, escalated_to, previous_status::text, new_status::text, previous_priority::text, new_priority::text, reason, created_at
		FROM escalations
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("escalation: list by case: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("escalation: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escalation: iterate: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	return rec, row.Scan(
		&rec.ID,
		&rec.CaseID,
		&rec.EscalatedBy,
		&rec.EscalatedTo,
		&rec.PreviousStatus,
		&rec.NewStatus,
		&rec.PreviousPriority,
		&rec.NewPriority,
		&rec.Reason,
		&rec.CreatedAt,
	)
}
