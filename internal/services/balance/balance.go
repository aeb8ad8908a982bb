package balance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/repos/ledger"
	"github.com/fastprodman/coingate/internal/store"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = ledger.ErrInsufficientFunds
	ErrBalanceOverflow   = ledger.ErrBalanceOverflow
)

// Ledger applies signed deltas to identity balances and serves the read side.
type Ledger struct {
	store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Lock takes the identity's ledger entry (creating it at 0) for the rest of
// u and returns its balance. Everything the unit reads about the identity
// after Lock is stable until u ends.
func (l *Ledger) Lock(ctx context.Context, u store.Unit, identityID string) (int64, error) {
	current, err := u.LockBalance(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("lock balance: %w", err)
	}

	return current, nil
}

// Check reports whether delta may be applied to a locked balance of current.
func Check(current, delta int64) error {
	switch {
	case delta == 0:
		return fmt.Errorf("%w: must be non-zero", ErrInvalidAmount)
	case delta > 0 && current > math.MaxInt64-delta:
		return fmt.Errorf("%w: earn of %d on %d: %w", ErrInvalidAmount, delta, current, ErrBalanceOverflow)
	case delta < 0 && current < -delta:
		return fmt.Errorf("redeem of %d against %d: %w", -delta, current, ErrInsufficientFunds)
	}

	return nil
}

// Commit inserts rec and then applies rec.Amount to the balance. If the
// balance write fails the record is deleted again before the error returns,
// so a record never outlives its balance effect.
func (l *Ledger) Commit(ctx context.Context, u store.Unit, rec domain.TransactionRecord) (int64, error) {
	err := u.InsertTransaction(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	next, err := u.ApplyDelta(ctx, rec.IdentityID, rec.Amount)
	if err != nil {
		err = fmt.Errorf("apply delta: %w", err)

		derr := u.DeleteTransaction(ctx, rec.ID)
		if derr != nil {
			return 0, errors.Join(err, fmt.Errorf("delete orphaned transaction %s: %w", rec.ID, derr))
		}

		return 0, err
	}

	return next, nil
}

// Balance returns 0 for identities that never transacted.
func (l *Ledger) Balance(ctx context.Context, identityID string) (int64, error) {
	b, err := l.store.Balance(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return b, nil
}

// History returns the newest records first. limit <= 0 selects the default;
// larger values are capped.
func (l *Ledger) History(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	recs, err := l.store.History(ctx, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	return recs, nil
}
