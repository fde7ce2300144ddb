package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_txid",
			SQL: `SELECT tx_id, COUNT(*) FROM fraud_cases
                  GROUP BY tx_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_escalated_has_record",
			SQL: `SELECT c.id FROM fraud_cases c
                  WHERE c.status = 'escalated'
                    AND NOT EXISTS (SELECT 1 FROM escalations e WHERE e.case_id = c.id)`,
		},
		{
			Name: "O3_no_escalation_from_closed",
			SQL:  `SELECT id, case_id FROM escalations WHERE previous_status = 'closed'`,
		},
		{
			Name: "O4_no_escalation_after_close",
			SQL: `SELECT e.id FROM escalations e
                  JOIN fraud_cases c ON c.id = e.case_id
                  WHERE c.status = 'closed' AND e.created_at > c.updated_at`,
		},
		{
			Name: "O5_reason_nonempty",
			SQL:  `SELECT id FROM escalations WHERE reason = ''`,
		},
		{
			Name: "O6_assignee_is_staff",
			SQL: `SELECT c.id FROM fraud_cases c
                  JOIN users u ON u.id = c.assigned_to
                  WHERE u.role NOT IN ('investigator','analyst')`,
		},
		{
			Name: "O7_open_means_unassigned",
			SQL:  `SELECT id FROM fraud_cases WHERE status = 'open' AND assigned_to IS NOT NULL`,
		},
		{
			Name: "O8_created_by_live_user",
			SQL: `SELECT c.id FROM fraud_cases c
                  LEFT JOIN users u ON u.id = c.created_by
                  WHERE u.id IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
