package gate

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/security/coupon"
	"github.com/fastprodman/coingate/internal/security/integrity"
	"github.com/fastprodman/coingate/internal/security/keys"
	"github.com/fastprodman/coingate/internal/services/balance"
	"github.com/fastprodman/coingate/internal/services/ratelimit"
	"github.com/fastprodman/coingate/internal/store"
	"github.com/fastprodman/coingate/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 5 * time.Minute

type fixture struct {
	gate     *Gate
	store    *spyStore
	verifier *integrity.Verifier
	keys     *keys.Store
	coupons  *coupon.Cipher
	mu       sync.Mutex
	now      time.Time
	observed []Kind
}

func (f *fixture) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

func (f *fixture) ObserveDecision(kind Kind, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.observed = append(f.observed, kind)
}

// spyStore records every transaction record written through a unit and the
// order of identity reads.
type spyStore struct {
	*memstore.Store

	mu       sync.Mutex
	inserted []domain.TransactionRecord
	ops      []string
}

type spyUnit struct {
	store.Unit
	s *spyStore
}

func (u spyUnit) InsertTransaction(ctx context.Context, rec domain.TransactionRecord) error {
	err := u.Unit.InsertTransaction(ctx, rec)
	if err == nil {
		u.s.mu.Lock()
		u.s.inserted = append(u.s.inserted, rec)
		u.s.mu.Unlock()
	}

	return err
}

func (u spyUnit) LockBalance(ctx context.Context, identityID string) (int64, error) {
	u.s.op(memstore.OpLockBalance)
	return u.Unit.LockBalance(ctx, identityID)
}

func (u spyUnit) CountSince(ctx context.Context, identityID string, since time.Time) (int, error) {
	u.s.op(memstore.OpCountSince)
	return u.Unit.CountSince(ctx, identityID, since)
}

func (s *spyStore) op(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, name)
}

func (s *spyStore) Atomically(ctx context.Context, fn func(ctx context.Context, u store.Unit) error) error {
	return s.Store.Atomically(ctx, func(ctx context.Context, u store.Unit) error {
		return fn(ctx, spyUnit{Unit: u, s: s})
	})
}

func (s *spyStore) last() domain.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inserted[len(s.inserted)-1]
}

type option func(cfg *Config, d *Deps)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	ks, err := keys.New(bytes.Repeat([]byte{0x11}, keys.KeySize), "k2", "k1")
	require.NoError(t, err)

	lim, err := ratelimit.NewLimiter(10, time.Minute)
	require.NoError(t, err)

	f := &fixture{
		store:    &spyStore{Store: memstore.New()},
		verifier: integrity.NewHMAC(ks.TagKey()),
		keys:     ks,
		coupons:  coupon.NewCipher(ks),
		now:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}

	cfg := Config{FreshnessWindow: window, StoreTimeout: time.Second}
	deps := Deps{
		Store:    f.store,
		Verifier: f.verifier,
		Limiter:  lim,
		Ledger:   balance.New(f.store),
		Coupons:  f.coupons,
		Clock:    f,
		Observer: f,
		Logger:   discardLogger(),
	}

	for _, o := range opts {
		o(&cfg, &deps)
	}

	f.gate, err = New(cfg, deps)
	require.NoError(t, err)

	return f
}

func newNonce(t *testing.T) string {
	t.Helper()

	b := make([]byte, 32)
	_, err := rand.Read(b)
	require.NoError(t, err)

	return hex.EncodeToString(b)
}

func (f *fixture) request(t *testing.T, identity string, kind domain.Kind, amount int64) Request {
	t.Helper()

	req := Request{
		IdentityID:  identity,
		Amount:      amount,
		Kind:        string(kind),
		Description: "test",
		Nonce:       newNonce(t),
		Timestamp:   f.Now().UnixMilli(),
	}
	f.sign(&req)

	return req
}

func (f *fixture) sign(req *Request) {
	req.Tag = f.verifier.Sign(req.IdentityID, req.Amount, req.Nonce, req.Timestamp)
}

func (f *fixture) balance(t *testing.T, identity string) int64 {
	t.Helper()

	b, err := f.store.Balance(context.Background(), identity)
	require.NoError(t, err)

	return b
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}

func TestSubmit_ScenarioU1(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 100)
	ctx := context.Background()

	_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindRedeem, 150))
	requireKind(t, err, KindInsufficientFunds)
	assert.Equal(t, int64(100), f.balance(t, "U1"))

	res, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindRedeem, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.NewBalance)
	assert.Equal(t, Completed, res.State)
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, int64(50), f.balance(t, "U1"))

	rec := f.store.last()
	assert.Equal(t, int64(-50), rec.Amount)
	assert.Equal(t, domain.KindRedeem, rec.Kind)
	assert.Equal(t, f.Now(), rec.CreatedAt)
}

func TestSubmit_ReplayIsRejectedOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	req := f.request(t, "U1", domain.KindEarn, 30)

	_, err := f.gate.Submit(ctx, "U1", req)
	require.NoError(t, err)

	_, err = f.gate.Submit(ctx, "U1", req)
	requireKind(t, err, KindNonceReplayed)
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.True(t, errors.Is(err, ErrNonceReplayed))

	upper := req
	upper.Nonce = strings.ToUpper(req.Nonce)
	f.sign(&upper)

	_, err = f.gate.Submit(ctx, "U1", upper)
	requireKind(t, err, KindNonceReplayed)

	assert.Equal(t, int64(30), f.balance(t, "U1"))
	assert.Equal(t, 1, f.store.RecordCount())
}

func TestSubmit_ConcurrentReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := f.request(t, "U1", domain.KindEarn, 5)

	const n = 32

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		replayed int
	)

	for range n {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.gate.Submit(context.Background(), "U1", req)

			mu.Lock()
			defer mu.Unlock()

			switch KindOf(err) {
			case "":
				ok++
			case KindNonceReplayed:
				replayed++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, replayed)
	assert.Equal(t, int64(5), f.balance(t, "U1"))
	assert.Equal(t, 1, f.store.NonceCount())
}

func TestSubmit_TamperedFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		caller string
		mutate func(r *Request)
	}{
		{"identity", "U2", func(r *Request) { r.IdentityID = "U2" }},
		{"amount", "U1", func(r *Request) { r.Amount++ }},
		{"amount_sign", "U1", func(r *Request) { r.Amount = -r.Amount }},
		{"nonce", "U1", func(r *Request) { r.Nonce = newNonceLike(r.Nonce) }},
		{"timestamp", "U1", func(r *Request) { r.Timestamp-- }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.store.SetBalance("U1", 100)
			req := f.request(t, "U1", domain.KindEarn, 10)
			tt.mutate(&req)

			_, err := f.gate.Submit(context.Background(), tt.caller, req)
			requireKind(t, err, KindIntegrityMismatch)

			var gerr *Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, FreshnessChecked, gerr.State)
			assert.Zero(t, f.store.NonceCount())
			assert.Equal(t, int64(100), f.balance(t, "U1"))
		})
	}
}

func newNonceLike(n string) string {
	if n[0] == '0' {
		return "1" + n[1:]
	}

	return "0" + n[1:]
}

func TestSubmit_FreshnessBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		offset time.Duration
		ok     bool
	}{
		{"past_edge", -window, true},
		{"past_edge_plus_1ms", -window - time.Millisecond, false},
		{"future_edge", window, true},
		{"future_edge_plus_1ms", window + time.Millisecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			req := f.request(t, "U1", domain.KindEarn, 1)
			req.Timestamp = f.Now().Add(tt.offset).UnixMilli()
			f.sign(&req)

			_, err := f.gate.Submit(context.Background(), "U1", req)
			if tt.ok {
				require.NoError(t, err)
				return
			}

			requireKind(t, err, KindStaleOrFutureTimestamp)
			assert.Zero(t, f.store.NonceCount())
		})
	}
}

func TestSubmit_ExtremeTimestampsAreStale(t *testing.T) {
	t.Parallel()

	for _, ts := range []int64{math.MaxInt64, 1 << 62, math.MinInt64, -(1 << 62)} {
		f := newFixture(t)
		req := f.request(t, "U1", domain.KindEarn, 1)
		req.Timestamp = ts
		f.sign(&req)

		_, err := f.gate.Submit(context.Background(), "U1", req)
		requireKind(t, err, KindStaleOrFutureTimestamp)
		assert.Zero(t, f.store.NonceCount(), "timestamp %d", ts)
	}
}

func TestSubmit_CapturedRequestAfterNoncePurge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	req := f.request(t, "U1", domain.KindEarn, 10)
	_, err := f.gate.Submit(ctx, "U1", req)
	require.NoError(t, err)

	f.advance(25 * time.Hour)

	purged, err := f.store.PurgeNonces(ctx, f.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = f.gate.Submit(ctx, "U1", req)
	requireKind(t, err, KindStaleOrFutureTimestamp)

	future := f.request(t, "U1", domain.KindEarn, 10)
	future.Timestamp = math.MaxInt64
	f.sign(&future)

	_, err = f.gate.Submit(ctx, "U1", future)
	requireKind(t, err, KindStaleOrFutureTimestamp)

	assert.Equal(t, int64(10), f.balance(t, "U1"))
}

func TestSubmit_LocksIdentityBeforeCountingRate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.gate.Submit(context.Background(), "U1", f.request(t, "U1", domain.KindEarn, 1))
	require.NoError(t, err)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	require.NotEmpty(t, f.store.ops)
	assert.Equal(t, memstore.OpLockBalance, f.store.ops[0])
	assert.Contains(t, f.store.ops, memstore.OpCountSince)
}

func TestSubmit_RateCheckedBeforeFunds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 100)
	ctx := context.Background()

	for range 10 {
		_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindEarn, 1))
		require.NoError(t, err)
	}

	_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindRedeem, 1000))
	requireKind(t, err, KindRateLimited)
}

func TestSubmit_RateBoundary(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for i := range 10 {
		_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindEarn, 1))
		require.NoError(t, err, "transaction %d", i+1)
		f.advance(time.Second)
	}

	_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindEarn, 1))
	requireKind(t, err, KindRateLimited)

	_, err = f.gate.Submit(ctx, "U2", f.request(t, "U2", domain.KindEarn, 1))
	require.NoError(t, err, "limit must be per identity")

	f.advance(51 * time.Second)

	_, err = f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindEarn, 1))
	require.NoError(t, err, "oldest record left the window")

	assert.Equal(t, int64(11), f.balance(t, "U1"))
}

func TestSubmit_RejectedAttemptsDoNotCountTowardsRate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for range 15 {
		_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindRedeem, 1))
		requireKind(t, err, KindInsufficientFunds)
	}

	_, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindEarn, 1))
	require.NoError(t, err)
}

func TestSubmit_CallerChecks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := f.request(t, "U1", domain.KindEarn, 1)

	_, err := f.gate.Submit(context.Background(), "", req)
	requireKind(t, err, KindUnauthenticated)

	_, err = f.gate.Submit(context.Background(), "U2", req)
	requireKind(t, err, KindIdentityMismatch)

	assert.Zero(t, f.store.NonceCount())
}

func TestSubmit_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"short_nonce", func(r *Request) { r.Nonce = r.Nonce[:10] }},
		{"non_hex_nonce", func(r *Request) { r.Nonce = "x" + r.Nonce[1:] }},
		{"short_tag", func(r *Request) { r.Tag = r.Tag[:63] }},
		{"kind", func(r *Request) { r.Kind = "transfer" }},
		{"description", func(r *Request) { r.Description = strings.Repeat("é", MaxDescriptionLen+1) }},
		{"partial_payload", func(r *Request) { r.CipherPayload = &domain.SealedCoupon{Ciphertext: "aa"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			req := f.request(t, "U1", domain.KindEarn, 1)
			tt.mutate(&req)

			_, err := f.gate.Submit(context.Background(), "U1", req)
			requireKind(t, err, KindMalformedRequest)
		})
	}
}

func TestSubmit_ZeroAmount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.gate.Submit(context.Background(), "U1", f.request(t, "U1", domain.KindEarn, 0))
	requireKind(t, err, KindInvalidAmount)
	assert.Zero(t, f.store.NonceCount())
	assert.Zero(t, f.store.RecordCount())
}

func TestSubmit_EarnOverflowIsInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 10)

	_, err := f.gate.Submit(context.Background(), "U1", f.request(t, "U1", domain.KindEarn, math.MaxInt64))
	requireKind(t, err, KindInvalidAmount)
	assert.False(t, KindOf(err).Retryable())
	assert.Equal(t, int64(10), f.balance(t, "U1"))
	assert.Zero(t, f.store.NonceCount())
	assert.Zero(t, f.store.RecordCount())
}

func TestSubmit_AmountSignFollowsKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 100)

	res, err := f.gate.Submit(context.Background(), "U1", f.request(t, "U1", domain.KindEarn, -20))
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.NewBalance)
}

func TestSubmit_StorageUnavailableIsRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 100)
	down := errors.New("connection refused")
	f.store.FailOn(memstore.OpApplyDelta, down)

	req := f.request(t, "U1", domain.KindRedeem, 40)

	_, err := f.gate.Submit(context.Background(), "U1", req)
	requireKind(t, err, KindStorageUnavailable)
	require.ErrorIs(t, err, down)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Retryable())
	assert.Zero(t, f.store.NonceCount())
	assert.Zero(t, f.store.RecordCount())
	assert.Equal(t, int64(100), f.balance(t, "U1"))

	f.store.FailOn(memstore.OpApplyDelta, nil)

	res, err := f.gate.Submit(context.Background(), "U1", req)
	require.NoError(t, err, "retry with the same nonce")
	assert.Equal(t, int64(60), res.NewBalance)
}

// stuckStore never finishes a unit before its context ends.
type stuckStore struct {
	*memstore.Store
}

func (stuckStore) Atomically(ctx context.Context, _ func(ctx context.Context, u store.Unit) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmit_StoreTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *Config, d *Deps) {
		cfg.StoreTimeout = 20 * time.Millisecond
		d.Store = stuckStore{Store: memstore.New()}
	})

	_, err := f.gate.Submit(context.Background(), "U1", f.request(t, "U1", domain.KindEarn, 1))
	requireKind(t, err, KindStorageUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit_CanceledCallerStillCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.gate.Submit(ctx, "U1", f.request(t, "U1", domain.KindEarn, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.NewBalance)
}

func TestSubmit_Coupon(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 100)

	oldKeys, err := keys.New(bytes.Repeat([]byte{0x11}, keys.KeySize), "k1")
	require.NoError(t, err)

	payload, err := coupon.NewCipher(oldKeys).Seal("SPRING2026")
	require.NoError(t, err)

	req := f.request(t, "U1", domain.KindRedeem, 25)
	req.CipherPayload = &payload

	res, err := f.gate.Submit(context.Background(), "U1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(75), res.NewBalance)

	stored := f.store.last().Coupon
	require.NotNil(t, stored)
	assert.Equal(t, "k2", stored.KeyID)
	assert.NotEqual(t, payload.IV, stored.IV)

	code, err := f.coupons.Open(*stored)
	require.NoError(t, err)
	assert.Equal(t, "SPRING2026", code)
}

func TestSubmit_CouponFailuresRollBack(t *testing.T) {
	t.Parallel()

	otherKeys, err := keys.New(bytes.Repeat([]byte{0x99}, keys.KeySize), "k2")
	require.NoError(t, err)

	foreign, err := coupon.NewCipher(otherKeys).Seal("SPRING2026")
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload func(f *fixture) domain.SealedCoupon
		kind    Kind
	}{
		{
			name:    "wrong_key",
			payload: func(*fixture) domain.SealedCoupon { return foreign },
			kind:    KindDecryptionFailed,
		},
		{
			name: "flipped_iv",
			payload: func(f *fixture) domain.SealedCoupon {
				sc, _ := f.coupons.Seal("SPRING2026")
				b, _ := hex.DecodeString(sc.IV)
				b[0] ^= 1
				sc.IV = hex.EncodeToString(b)
				return sc
			},
			kind: KindDecryptionFailed,
		},
		{
			name: "unknown_key_id",
			payload: func(f *fixture) domain.SealedCoupon {
				sc, _ := f.coupons.Seal("SPRING2026")
				sc.KeyID = "k7"
				return sc
			},
			kind: KindDecryptionFailed,
		},
		{
			name: "bad_code_format",
			payload: func(f *fixture) domain.SealedCoupon {
				sc, _ := f.coupons.Seal("spring")
				return sc
			},
			kind: KindMalformedRequest,
		},
		{
			name: "not_hex",
			payload: func(*fixture) domain.SealedCoupon {
				return domain.SealedCoupon{Ciphertext: "zz", IV: "00", KeyID: "k2"}
			},
			kind: KindMalformedRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.store.SetBalance("U1", 100)

			payload := tt.payload(f)
			req := f.request(t, "U1", domain.KindRedeem, 25)
			req.CipherPayload = &payload

			_, err := f.gate.Submit(context.Background(), "U1", req)
			requireKind(t, err, tt.kind)

			assert.Equal(t, int64(100), f.balance(t, "U1"))
			assert.Zero(t, f.store.NonceCount())
			assert.Zero(t, f.store.RecordCount())
		})
	}
}

func TestSubmit_CouponsDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(_ *Config, d *Deps) { d.Coupons = nil })

	req := f.request(t, "U1", domain.KindEarn, 1)
	req.CipherPayload = &domain.SealedCoupon{Ciphertext: "aa", IV: "bb", KeyID: "k2"}

	_, err := f.gate.Submit(context.Background(), "U1", req)
	requireKind(t, err, KindMalformedRequest)
}

func TestSubmit_DigestMode(t *testing.T) {
	t.Parallel()

	digest := integrity.NewDigest()
	f := newFixture(t, func(_ *Config, d *Deps) { d.Verifier = digest })
	f.verifier = digest

	_, err := f.gate.Submit(context.Background(), "U1", f.request(t, "U1", domain.KindEarn, 1))
	require.NoError(t, err)
}

func TestSubmit_Conservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.SetBalance("U1", 10)
	ctx := context.Background()

	steps := []struct {
		kind   domain.Kind
		amount int64
		replay bool
	}{
		{domain.KindEarn, 15, false},
		{domain.KindRedeem, 30, false},
		{domain.KindRedeem, 20, true},
		{domain.KindEarn, 0, false},
		{domain.KindEarn, 4, true},
		{domain.KindRedeem, 9, false},
	}

	want := int64(10)
	for _, st := range steps {
		req := f.request(t, "U1", st.kind, st.amount)

		_, err := f.gate.Submit(ctx, "U1", req)
		if err == nil {
			want += st.kind.Delta(st.amount)
		}

		if st.replay {
			_, err = f.gate.Submit(ctx, "U1", req)
			requireKind(t, err, KindNonceReplayed)
		}
	}

	assert.Equal(t, want, f.balance(t, "U1"))
	assert.Equal(t, int64(0), want)
}

func TestSubmit_ObserverSeesEveryDecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := f.request(t, "U1", domain.KindEarn, 1)

	_, _ = f.gate.Submit(context.Background(), "U1", req)
	_, _ = f.gate.Submit(context.Background(), "U1", req)
	_, _ = f.gate.Submit(context.Background(), "", req)

	f.mu.Lock()
	defer f.mu.Unlock()

	assert.Equal(t, []Kind{"", KindNonceReplayed, KindUnauthenticated}, f.observed)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{FreshnessWindow: window, StoreTimeout: time.Second}, Deps{})
	require.Error(t, err)
}
