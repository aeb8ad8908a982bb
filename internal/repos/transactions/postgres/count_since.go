package transactions

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (r *transactionsRepo) CountSince(ctx context.Context, tx *sql.Tx, identityID string, since time.Time) (int, error) {
	var n int

	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE identity_id = $1
		  AND created_at >= $2
	`, identityID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}

	return n, nil
}
