package fraudcase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the case (or, in the service, a referenced user)
	// does not exist. Visibility-denied reads surface this same error so
	// unauthorized callers cannot probe for case existence.
	ErrNotFound = errors.New("fraudcase: not found")
	// ErrConflict signals a uniqueness violation on the transaction reference.
	ErrConflict = errors.New("fraudcase: duplicate transaction reference")
)

// UpdateParams enumerates the mutable columns. Only non-nil fields are
// written; ClearAssignee removes the assignee when no replacement is set.
type UpdateParams struct {
	Description   *string
	TxID          *string
	Status        *Status
	Priority      *Priority
	AssignedTo    *string
	ClearAssignee bool
}

// Filters supports equality predicates for case listing.
type Filters struct {
	Status     Status
	Priority   Priority
	AssignedTo string
	CreatedBy  string
	TxID       string
}

// Repository defines the persistence surface of the case lifecycle.
// Methods taking pgx.Tx participate in the caller's transaction.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, c Case) (Case, error)
	GetByID(ctx context.Context, id string) (Case, error)
	GetByTxID(ctx context.Context, txID string) (Case, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error)
	Update(ctx context.Context, tx pgx.Tx, id string, params UpdateParams) (Case, error)
	List(ctx context.Context, filters Filters) ([]Case, error)
}

const caseColumns = "id, tx_id, description, status::text, priority::text, assigned_to, created_by, created_at, updated_at"

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed case repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, c Case) (Case, error) {
	const query = `
		INSERT INTO fraud_cases (id, tx_id, description, status, priority, assigned_to, created_by)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		RETURNING ` + caseColumns

	row := tx.QueryRow(ctx, query,
		c.ID,
		c.TxID,
		c.Description,
		c.Status,
		c.Priority,
		c.AssignedTo,
		c.CreatedBy,
	)

	created, err := scanCase(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Case{}, ErrConflict
		}
		return Case{}, fmt.Errorf("fraudcase: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM fraud_cases WHERE id = $1`

	c, err := scanCase(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("fraudcase: get by id: %w", err)
	}
	return c, nil
}

func (r *PGRepository) GetByTxID(ctx context.Context, txID string) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM fraud_cases WHERE tx_id = $1`

	c, err := scanCase(r.pool.QueryRow(ctx, query, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("fraudcase: get by tx id: %w", err)
	}
	return c, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error) {
	query := `SELECT ` + caseColumns + ` FROM fraud_cases WHERE id = $1 FOR UPDATE`

	c, err := scanCase(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("fraudcase: get for update: %w", err)
	}
	return c, nil
}

// Update writes the provided fields and refreshes updated_at. The full
// SET clause is built from one caller's params so concurrent updates to
// the same row never interleave field sets.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id string, params UpdateParams) (Case, error) {
	set := []string{"updated_at = get_tx_timestamp()"}
	args := []any{id}

	appendSet := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if params.Description != nil {
		appendSet("description", *params.Description)
	}
	if params.TxID != nil {
		appendSet("tx_id", *params.TxID)
	}
	if params.Status != nil {
		appendSet("status", *params.Status)
	}
	if params.Priority != nil {
		appendSet("priority", *params.Priority)
	}
	switch {
	case params.AssignedTo != nil:
		appendSet("assigned_to", *params.AssignedTo)
	case params.ClearAssignee:
		set = append(set, "assigned_to = NULL")
	}

	query := fmt.Sprintf(`UPDATE fraud_cases SET %s WHERE id = $1 RETURNING %s`, strings.Join(set, ", "), caseColumns)

	c, err := scanCase(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Case{}, ErrConflict
		}
		return Case{}, fmt.Errorf("fraudcase: update: %w", err)
	}
	return c, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Case, error) {
	base := `SELECT ` + caseColumns + ` FROM fraud_cases`
	where := []string{"1=1"}
	args := []any{}

	appendWhere := func(column string, value any) {
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if filters.Status != "" {
		appendWhere("status", filters.Status)
	}
	if filters.Priority != "" {
		appendWhere("priority", filters.Priority)
	}
	if filters.AssignedTo != "" {
		appendWhere("assigned_to", filters.AssignedTo)
	}
	if filters.CreatedBy != "" {
		appendWhere("created_by", filters.CreatedBy)
	}
	if filters.TxID != "" {
		appendWhere("tx_id", filters.TxID)
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fraudcase: list: %w", err)
	}
	defer rows.Close()

	list := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("fraudcase: scan: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fraudcase: iterate: %w", err)
	}
	return list, nil
}

func scanCase(row pgx.Row) (Case, error) {
	var c Case
	return c, row.Scan(
		&c.ID,
		&c.TxID,
		&c.Description,
		&c.Status,
		&c.Priority,
		&c.AssignedTo,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}
