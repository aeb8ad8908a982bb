// Package store defines the storage contract the transaction gate runs on.
//
// A Unit is one atomic piece of work: everything done through it is either
// committed together or not at all. Implementations report domain failures
// with the sentinels of the repository packages (nonces.ErrNonceExists,
// ledger.ErrInsufficientFunds, transactions.ErrNotFound, ...).
package store

import (
	"context"
	"time"

	"github.com/fastprodman/coingate/internal/domain"
)

// Unit is the set of operations available inside Store.Atomically.
type Unit interface {
	// ConsumeNonce records nonce as used; nonces.ErrNonceExists if it already was.
	ConsumeNonce(ctx context.Context, nonce, identityID string, at time.Time) error
	// CountSince counts identityID's transaction records created at or after since.
	CountSince(ctx context.Context, identityID string, since time.Time) (int, error)
	// LockBalance returns the current balance, creating a zero entry if needed,
	// and holds identityID exclusively until the unit ends.
	LockBalance(ctx context.Context, identityID string) (int64, error)
	// ApplyDelta changes the balance and returns the new value.
	ApplyDelta(ctx context.Context, identityID string, delta int64) (int64, error)
	InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error
	DeleteTransaction(ctx context.Context, id string) error
}

type Store interface {
	// Atomically runs fn in one unit. fn's error aborts the unit and is returned as is.
	Atomically(ctx context.Context, fn func(ctx context.Context, u Unit) error) error
	// Balance returns 0 for identities without a ledger entry.
	Balance(ctx context.Context, identityID string) (int64, error)
	History(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error)
	PurgeNonces(ctx context.Context, before time.Time) (int64, error)
}
