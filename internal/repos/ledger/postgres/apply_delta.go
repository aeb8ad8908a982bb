package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/coingate/internal/infra/pgutils"
	"github.com/fastprodman/coingate/internal/repos/ledger"
)

// ApplyDelta adds delta to the balance and returns the new value. The
// guard in WHERE keeps the balance non-negative even without a prior lock.
func (r *ledgerRepo) ApplyDelta(ctx context.Context, tx *sql.Tx, identityID string, delta int64) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		UPDATE ledger_entries
		SET balance = balance + $2,
		    updated_at = now()
		WHERE identity_id = $1
		  AND balance + $2 >= 0
		RETURNING balance
	`, identityID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ledger.ErrInsufficientFunds
		}

		if pgutils.IsCode(err, pgutils.CodeCheckViolation) {
			return 0, ledger.ErrInsufficientFunds
		}

		if pgutils.IsCode(err, pgutils.CodeNumericOutOfRange) {
			return 0, ledger.ErrBalanceOverflow
		}

		return 0, fmt.Errorf("apply delta: %w", err)
	}

	return balance, nil
}
