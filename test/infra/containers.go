package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PGContainer wraps the dockerized Postgres used by the stress run. The
// zero value stands in when an external database is supplied instead.
type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 provides a Postgres 16 DSN for the stress run. An
// explicit overrideDSN wins, then FRAUDFLOW_STRESS_DSN, and only when
// neither is set does a fresh container start.
func StartPostgres16(ctx context.Context, overrideDSN string) (*PGContainer, string, error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, nil
	}
	if dsn := os.Getenv("FRAUDFLOW_STRESS_DSN"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("fraudflow"),
		postgres.WithUsername("fraudflow"),
		postgres.WithPassword("fraudflow"),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

// Terminate stops the container if this run actually started one.
func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
