package nonces

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fastprodman/coingate/internal/infra/pgutils"
	"github.com/fastprodman/coingate/internal/repos/nonces"
)

// Consume records nonce as used. A concurrent insert of the same nonce blocks
// on the primary key until the first transaction ends, so exactly one caller
// observes a new row.
func (r *noncesRepo) Consume(ctx context.Context, tx *sql.Tx, nonce, identityID string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO consumed_nonces (nonce, identity_id, consumed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (nonce) DO NOTHING
	`, nonce, identityID, at)
	if err != nil {
		if pgutils.IsCode(err, pgutils.CodeUniqueViolation) {
			return nonces.ErrNonceExists
		}

		return fmt.Errorf("insert nonce: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return nonces.ErrNonceExists
	}

	return nil
}
