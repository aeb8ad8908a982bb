package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/infra/pgutils"
	"github.com/fastprodman/coingate/internal/repos/transactions"
)

func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, rec domain.TransactionRecord) error {
	var ciphertext, iv, keyID sql.NullString
	if rec.Coupon != nil {
		ciphertext = sql.NullString{String: rec.Coupon.Ciphertext, Valid: true}
		iv = sql.NullString{String: rec.Coupon.IV, Valid: true}
		keyID = sql.NullString{String: rec.Coupon.KeyID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, identity_id, amount, kind, description, nonce, tag,
			coupon_ciphertext, coupon_iv, coupon_key_id, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.IdentityID, rec.Amount, string(rec.Kind), rec.Description, rec.Nonce, rec.Tag,
		ciphertext, iv, keyID, rec.Status, rec.CreatedAt)
	if err != nil {
		if pgutils.IsCode(err, pgutils.CodeUniqueViolation) {
			return transactions.ErrDuplicateTransaction
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}
