package ledger

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrBalanceOverflow   = errors.New("balance out of range")
)

type Ledger interface {
	GetBalance(ctx context.Context, identityID string) (int64, error)
	LockOrCreate(ctx context.Context, tx *sql.Tx, identityID string) (int64, error)
	ApplyDelta(ctx context.Context, tx *sql.Tx, identityID string, delta int64) (int64, error)
}
