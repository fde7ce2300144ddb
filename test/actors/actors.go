package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reporter files new cases, deliberately reusing a small pool of
// transaction references so concurrent creators collide on the unique
// constraint.
func Reporter(ctx context.Context, pool *pgxpool.Pool, creatorID string, txidPool int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		txid := fmt.Sprintf("STRESS-TX-%d", rand.Intn(txidPool))
		_, err := pool.Exec(ctx, `INSERT INTO fraud_cases (tx_id, description, status, priority, created_by)
                                   VALUES ($1, 'stress generated', 'open', 'medium', $2)`, txid, creatorID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique constraint
				// expected under contention
			} else {
				return fmt.Errorf("reporter insert: %w", err)
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Assigner grabs an unassigned open case and hands it to a staff member,
// forcing in_progress, the same write the lifecycle service performs.
func Assigner(ctx context.Context, pool *pgxpool.Pool, staffIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		var caseID string
		err = tx.QueryRow(ctx, `SELECT id FROM fraud_cases WHERE status='open' AND assigned_to IS NULL LIMIT 1 FOR UPDATE SKIP LOCKED`).Scan(&caseID)
		if err == nil {
			assignee := staffIDs[rand.Intn(len(staffIDs))]
			_, err = tx.Exec(ctx, `UPDATE fraud_cases SET status='in_progress', assigned_to=$2, updated_at=now() WHERE id=$1`, caseID, assignee)
			if err == nil {
				_ = tx.Commit(ctx)
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Escalator raises a random live case and appends the audit record in the
// same transaction, so a torn escalation is never visible.
func Escalator(ctx context.Context, pool *pgxpool.Pool, escalatorID string, staffIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		var (
			caseID   string
			status   string
			priority string
		)
		err = tx.QueryRow(ctx, `SELECT id, status::text, priority::text FROM fraud_cases WHERE status <> 'closed' ORDER BY random() LIMIT 1 FOR UPDATE SKIP LOCKED`).
			Scan(&caseID, &status, &priority)
		if err == nil {
			target := staffIDs[rand.Intn(len(staffIDs))]
			_, err = tx.Exec(ctx, `UPDATE fraud_cases SET status='escalated', priority='critical', assigned_to=$2, updated_at=now() WHERE id=$1`, caseID, target)
			if err == nil {
				_, err = tx.Exec(ctx, `INSERT INTO escalations (case_id, escalated_by, escalated_to, previous_status, new_status, previous_priority, new_priority, reason)
                                        VALUES ($1, $2, $3, $4, 'escalated', $5, 'critical', 'stress escalation')`,
					caseID, escalatorID, target, status, priority)
				if err == nil {
					_ = tx.Commit(ctx)
				}
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// Resolver moves in_progress and escalated cases to resolved.
func Resolver(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		var caseID string
		err = tx.QueryRow(ctx, `SELECT id FROM fraud_cases WHERE status IN ('in_progress','escalated') LIMIT 1 FOR UPDATE SKIP LOCKED`).Scan(&caseID)
		if err == nil {
			_, err = tx.Exec(ctx, `UPDATE fraud_cases SET status='resolved', updated_at=now() WHERE id=$1`, caseID)
			if err == nil {
				_ = tx.Commit(ctx)
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Closer finalizes resolved cases; closing anything else is never issued,
// mirroring the lifecycle rule.
func Closer(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		var caseID string
		err = tx.QueryRow(ctx, `SELECT id FROM fraud_cases WHERE status='resolved' LIMIT 1 FOR UPDATE SKIP LOCKED`).Scan(&caseID)
		if err == nil {
			_, err = tx.Exec(ctx, `UPDATE fraud_cases SET status='closed', updated_at=now() WHERE id=$1`, caseID)
			if err == nil {
				_ = tx.Commit(ctx)
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(50+rand.Intn(80)) * time.Millisecond)
	}
}

// HistoryReader walks escalation history while writers churn, verifying
// reads never observe a half-written escalation.
func HistoryReader(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		rows, err := pool.Query(ctx, `SELECT case_id, previous_status::text, new_status::text, reason FROM escalations ORDER BY created_at DESC LIMIT 20`)
		if err == nil {
			for rows.Next() {
				var caseID, prev, next, reason string
				if err := rows.Scan(&caseID, &prev, &next, &reason); err != nil {
					rows.Close()
					return fmt.Errorf("history scan: %w", err)
				}
				if reason == "" {
					rows.Close()
					return fmt.Errorf("history reader observed empty reason for case %s (%s -> %s)", caseID, prev, next)
				}
			}
			rows.Close()
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}
