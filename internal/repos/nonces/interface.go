package nonces

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNonceExists = errors.New("nonce already consumed")

type Nonces interface {
	Consume(ctx context.Context, tx *sql.Tx, nonce, identityID string, at time.Time) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
