package transactions

import (
	"context"
	"fmt"

	"github.com/fastprodman/coingate/internal/domain"
)

// ListByIdentity returns the newest records first. Coupon columns are not read.
func (r *transactionsRepo) ListByIdentity(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity_id, amount, kind, description, nonce, tag, status, created_at
		FROM transactions
		WHERE identity_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TransactionRecord, 0, limit)

	for rows.Next() {
		var (
			rec  domain.TransactionRecord
			kind string
		)

		err = rows.Scan(&rec.ID, &rec.IdentityID, &rec.Amount, &kind, &rec.Description,
			&rec.Nonce, &rec.Tag, &rec.Status, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		rec.Kind = domain.Kind(kind)
		out = append(out, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
