package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/coingate/internal/repos/transactions"
)

func (r *transactionsRepo) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return transactions.ErrNotFound
	}

	return nil
}
