package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// LockOrCreate makes sure an entry exists for identityID and locks it
// FOR UPDATE until tx ends. New entries start at zero.
func (r *ledgerRepo) LockOrCreate(ctx context.Context, tx *sql.Tx, identityID string) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (identity_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (identity_id) DO NOTHING
	`, identityID)
	if err != nil {
		return 0, fmt.Errorf("ensure entry: %w", err)
	}

	var balance int64

	err = tx.QueryRowContext(ctx, `
		SELECT balance
		FROM ledger_entries
		WHERE identity_id = $1
		FOR UPDATE
	`, identityID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("lock/get balance: %w", err)
	}

	return balance, nil
}
