// Package memstore is an in-process implementation of store.Store used by
// tests and by STORE_BACKEND=memory. All units are serialised by one mutex;
// writes are journalled and undone when a unit fails.
package memstore

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/repos/ledger"
	"github.com/fastprodman/coingate/internal/repos/nonces"
	"github.com/fastprodman/coingate/internal/repos/transactions"
	"github.com/fastprodman/coingate/internal/store"
)

// Operation names accepted by FailOn.
const (
	OpConsumeNonce      = "ConsumeNonce"
	OpCountSince        = "CountSince"
	OpLockBalance       = "LockBalance"
	OpApplyDelta        = "ApplyDelta"
	OpInsertTransaction = "InsertTransaction"
	OpDeleteTransaction = "DeleteTransaction"
)

var _ store.Store = (*Store)(nil)

type consumedNonce struct {
	identityID string
	at         time.Time
}

type Store struct {
	mu       sync.Mutex
	balances map[string]int64
	nonces   map[string]consumedNonce
	records  []domain.TransactionRecord
	faults   map[string]error
	deletes  int
}

func New() *Store {
	return &Store{
		balances: make(map[string]int64),
		nonces:   make(map[string]consumedNonce),
		faults:   make(map[string]error),
	}
}

// SetBalance seeds a ledger entry.
func (s *Store) SetBalance(identityID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[identityID] = balance
}

// FailOn makes every later call of op return err. A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.faults, op)
		return
	}

	s.faults[op] = err
}

// NonceCount reports how many consumed nonces are held.
func (s *Store) NonceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nonces)
}

// RecordCount reports how many transaction records are held.
func (s *Store) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// Deletes reports how many transaction records were removed through a unit,
// including removals later undone by a rollback.
func (s *Store) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deletes
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, u store.Unit) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin unit: %w", err)
	}

	u := &unit{s: s}

	err := fn(ctx, u)
	if err != nil {
		u.rollback()
		return err
	}

	return nil
}

func (s *Store) Balance(ctx context.Context, identityID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.balances[identityID], nil
}

func (s *Store) History(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.TransactionRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].IdentityID == identityID {
			rec := s.records[i]
			rec.Coupon = nil
			out = append(out, rec)
		}
	}

	slices.SortStableFunc(out, func(a, b domain.TransactionRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}

func (s *Store) PurgeNonces(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for nonce, c := range s.nonces {
		if c.at.Before(before) {
			delete(s.nonces, nonce)
			n++
		}
	}

	return n, nil
}

// unit runs with s.mu held.
type unit struct {
	s    *Store
	undo []func()
}

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}

	u.undo = nil
}

func (u *unit) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err, ok := u.s.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (u *unit) ConsumeNonce(ctx context.Context, nonce, identityID string, at time.Time) error {
	if err := u.check(ctx, OpConsumeNonce); err != nil {
		return err
	}

	if _, ok := u.s.nonces[nonce]; ok {
		return nonces.ErrNonceExists
	}

	u.s.nonces[nonce] = consumedNonce{identityID: identityID, at: at}
	u.undo = append(u.undo, func() { delete(u.s.nonces, nonce) })

	return nil
}

func (u *unit) CountSince(ctx context.Context, identityID string, since time.Time) (int, error) {
	if err := u.check(ctx, OpCountSince); err != nil {
		return 0, err
	}

	n := 0
	for _, rec := range u.s.records {
		if rec.IdentityID == identityID && !rec.CreatedAt.Before(since) {
			n++
		}
	}

	return n, nil
}

func (u *unit) LockBalance(ctx context.Context, identityID string) (int64, error) {
	if err := u.check(ctx, OpLockBalance); err != nil {
		return 0, err
	}

	balance, ok := u.s.balances[identityID]
	if !ok {
		u.s.balances[identityID] = 0
		u.undo = append(u.undo, func() { delete(u.s.balances, identityID) })
	}

	return balance, nil
}

func (u *unit) ApplyDelta(ctx context.Context, identityID string, delta int64) (int64, error) {
	if err := u.check(ctx, OpApplyDelta); err != nil {
		return 0, err
	}

	prev, ok := u.s.balances[identityID]
	if !ok {
		return 0, ledger.ErrEntryNotFound
	}

	if delta > 0 && prev > math.MaxInt64-delta {
		return 0, ledger.ErrBalanceOverflow
	}

	next := prev + delta
	if next < 0 {
		return 0, ledger.ErrInsufficientFunds
	}

	u.s.balances[identityID] = next
	u.undo = append(u.undo, func() { u.s.balances[identityID] = prev })

	return next, nil
}

func (u *unit) InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error {
	if err := u.check(ctx, OpInsertTransaction); err != nil {
		return err
	}

	for _, r := range u.s.records {
		if r.ID == rec.ID {
			return transactions.ErrDuplicateTransaction
		}
	}

	u.s.records = append(u.s.records, rec)
	u.undo = append(u.undo, func() { u.s.removeRecord(rec.ID) })

	return nil
}

func (u *unit) DeleteTransaction(ctx context.Context, id string) error {
	if err := u.check(ctx, OpDeleteTransaction); err != nil {
		return err
	}

	rec, ok := u.s.removeRecord(id)
	if !ok {
		return transactions.ErrNotFound
	}

	u.s.deletes++
	u.undo = append(u.undo, func() { u.s.records = append(u.s.records, rec) })

	return nil
}

func (s *Store) removeRecord(id string) (domain.TransactionRecord, bool) {
	for i, r := range s.records {
		if r.ID == id {
			s.records = slices.Delete(s.records, i, i+1)
			return r, true
		}
	}

	return domain.TransactionRecord{}, false
}
