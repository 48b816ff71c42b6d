package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger is the optional durable backend: the same collaborator
// contract backed by a single table rather than Redis, for deployments
// that need the running totals to survive a cache flush. Schema lives in
// migrations/ and is applied by cmd/migrate.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger wraps an existing connection pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Record(ctx context.Context, sessionID string, costUSD float64) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO session_costs (session_id, total_cost_usd, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE
		SET total_cost_usd = session_costs.total_cost_usd + EXCLUDED.total_cost_usd,
		    updated_at = now()
	`, sessionID, costUSD)
	if err != nil {
		return fmt.Errorf("ledger record session %s: %w", sessionID, err)
	}
	return nil
}

func (l *PostgresLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	var total float64
	err := l.pool.QueryRow(ctx, `
		SELECT total_cost_usd FROM session_costs WHERE session_id = $1
	`, sessionID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger total session %s: %w", sessionID, err)
	}
	return total, nil
}

func (l *PostgresLedger) WouldExceed(ctx context.Context, sessionID string, additionalUSD, ceilingUSD float64) (bool, error) {
	total, err := l.Total(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return total+additionalUSD > ceilingUSD, nil
}
