package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/infra/pgutils"
	"github.com/fastprodman/coingate/internal/repos/ledger"
	pgledger "github.com/fastprodman/coingate/internal/repos/ledger/postgres"
	"github.com/fastprodman/coingate/internal/repos/nonces"
	pgnonces "github.com/fastprodman/coingate/internal/repos/nonces/postgres"
	"github.com/fastprodman/coingate/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/coingate/internal/repos/transactions/postgres"
	"github.com/fastprodman/coingate/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store runs units as READ COMMITTED transactions. Same-nonce submissions
// serialise on the consumed_nonces primary key, same-identity submissions on
// the ledger row lock taken by LockBalance.
type Store struct {
	db     *sql.DB
	nonces nonces.Nonces
	ledger ledger.Ledger
	txns   transactions.Transactions
}

func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		nonces: pgnonces.New(db),
		ledger: pgledger.New(db),
		txns:   pgtransactions.New(db),
	}
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, u store.Unit) error) error {
	return pgutils.WithTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(tx *sql.Tx) error {
		return fn(ctx, &unit{s: s, tx: tx})
	})
}

func (s *Store) Balance(ctx context.Context, identityID string) (int64, error) {
	balance, err := s.ledger.GetBalance(ctx, identityID)
	if err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (s *Store) History(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error) {
	recs, err := s.txns.ListByIdentity(ctx, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	return recs, nil
}

func (s *Store) PurgeNonces(ctx context.Context, before time.Time) (int64, error) {
	return s.nonces.PurgeBefore(ctx, before)
}

type unit struct {
	s  *Store
	tx *sql.Tx
}

func (u *unit) ConsumeNonce(ctx context.Context, nonce, identityID string, at time.Time) error {
	return u.s.nonces.Consume(ctx, u.tx, nonce, identityID, at)
}

func (u *unit) CountSince(ctx context.Context, identityID string, since time.Time) (int, error) {
	return u.s.txns.CountSince(ctx, u.tx, identityID, since)
}

func (u *unit) LockBalance(ctx context.Context, identityID string) (int64, error) {
	return u.s.ledger.LockOrCreate(ctx, u.tx, identityID)
}

func (u *unit) ApplyDelta(ctx context.Context, identityID string, delta int64) (int64, error) {
	return u.s.ledger.ApplyDelta(ctx, u.tx, identityID, delta)
}

func (u *unit) InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error {
	return u.s.txns.Insert(ctx, u.tx, rec)
}

func (u *unit) DeleteTransaction(ctx context.Context, id string) error {
	return u.s.txns.Delete(ctx, u.tx, id)
}
