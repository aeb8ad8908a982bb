package nonces

import (
	"context"
	"fmt"
	"time"
)

func (r *noncesRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM consumed_nonces
		WHERE consumed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge nonces: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return affected, nil
}
