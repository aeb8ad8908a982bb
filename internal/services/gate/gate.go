// Package gate decides whether a proposed balance mutation is accepted.
//
// Every request walks the same sequence: caller authenticated, caller owns
// the identity, request well formed, timestamp fresh, tag valid; then, inside
// one store unit, nonce consumed, identity locked, rate within limit, ledger
// checked, coupon opened and re-sealed, record and balance written. The first
// failure rejects the request and the unit rolls back, so a rejected request
// changes nothing.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/repos/ledger"
	"github.com/fastprodman/coingate/internal/repos/nonces"
	"github.com/fastprodman/coingate/internal/security/coupon"
	"github.com/fastprodman/coingate/internal/security/freshness"
	"github.com/fastprodman/coingate/internal/services/balance"
	"github.com/fastprodman/coingate/internal/services/ratelimit"
	"github.com/fastprodman/coingate/internal/store"
)

// Verifier checks transaction tags.
type Verifier interface {
	Verify(identityID string, amount int64, nonce string, timestampMs int64, tag string) bool
}

// Clock is the server time source.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Observer receives one call per decision; kind is empty for accepted requests.
type Observer interface {
	ObserveDecision(kind Kind, took time.Duration)
}

type Config struct {
	FreshnessWindow time.Duration
	StoreTimeout    time.Duration
}

// Deps are the collaborators of a Gate. Coupons may be nil, in which case
// requests carrying a cipher payload are rejected as malformed. Clock,
// Logger and Observer have defaults.
type Deps struct {
	Store    store.Store
	Verifier Verifier
	Limiter  *ratelimit.Limiter
	Ledger   *balance.Ledger
	Coupons  *coupon.Cipher
	Clock    Clock
	Logger   *slog.Logger
	Observer Observer
}

type Gate struct {
	cfg   Config
	deps  Deps
	log   *slog.Logger
	newID func() string
}

func New(cfg Config, deps Deps) (*Gate, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("gate: store is required")
	case deps.Verifier == nil:
		return nil, errors.New("gate: verifier is required")
	case deps.Limiter == nil:
		return nil, errors.New("gate: limiter is required")
	case deps.Ledger == nil:
		return nil, errors.New("gate: ledger is required")
	case cfg.FreshnessWindow <= 0 || cfg.StoreTimeout <= 0:
		return nil, errors.New("gate: freshness window and store timeout must be positive")
	}

	if deps.Clock == nil {
		deps.Clock = ClockFunc(time.Now)
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Gate{
		cfg:   cfg,
		deps:  deps,
		log:   deps.Logger.With("component", "gate"),
		newID: uuid.NewString,
	}, nil
}

// Submit runs req on behalf of caller, the identity proven by the auth layer
// ("" when the request carried no valid credential). Rejections are *Error.
//
// The store unit runs detached from ctx cancellation, bounded by the store
// timeout: once started, a unit either commits or rolls back as a whole no
// matter what happens to the caller's connection.
func (g *Gate) Submit(ctx context.Context, caller string, req Request) (Result, error) {
	start := time.Now()

	res, err := g.submit(ctx, caller, req)

	g.record(req, res, err, time.Since(start))

	return res, err
}

func (g *Gate) submit(ctx context.Context, caller string, req Request) (Result, error) {
	state := Received

	if caller == "" {
		return Result{}, reject(KindUnauthenticated, state, "missing or invalid credentials", nil)
	}

	if caller != req.IdentityID {
		return Result{}, reject(KindIdentityMismatch, state, "identityId does not match the authenticated caller", nil)
	}

	p, problem := parse(req)
	if problem != "" {
		return Result{}, reject(KindMalformedRequest, state, problem, nil)
	}

	if req.CipherPayload != nil && g.deps.Coupons == nil {
		return Result{}, reject(KindMalformedRequest, state, "coupons are not accepted", nil)
	}

	now := g.deps.Clock.Now()

	if !freshness.IsFresh(freshness.FromMillis(req.Timestamp), now, g.cfg.FreshnessWindow) {
		return Result{}, reject(KindStaleOrFutureTimestamp, state,
			fmt.Sprintf("timestamp is more than %s away from server time", g.cfg.FreshnessWindow), nil)
	}

	state = FreshnessChecked

	if !g.deps.Verifier.Verify(req.IdentityID, req.Amount, req.Nonce, req.Timestamp, req.Tag) {
		return Result{}, reject(KindIntegrityMismatch, state, "tag does not match request fields", nil)
	}

	state = IntegrityChecked

	rec := domain.TransactionRecord{
		ID:          g.newID(),
		IdentityID:  req.IdentityID,
		Amount:      p.delta,
		Kind:        p.kind,
		Description: req.Description,
		Nonce:       p.nonce,
		Tag:         req.Tag,
		Status:      domain.StatusCompleted,
		CreatedAt:   now,
	}

	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.StoreTimeout)
	defer cancel()

	var newBalance int64

	err := g.deps.Store.Atomically(unitCtx, func(ctx context.Context, u store.Unit) error {
		err := u.ConsumeNonce(ctx, p.nonce, req.IdentityID, now)
		if err != nil {
			if errors.Is(err, nonces.ErrNonceExists) {
				return reject(KindNonceReplayed, state, "nonce has already been used", nil)
			}

			return fmt.Errorf("consume nonce: %w", err)
		}

		state = NonceChecked

		// Concurrent units for one identity queue here, so the rate count
		// below sees every record committed before this unit.
		current, err := g.deps.Ledger.Lock(ctx, u, req.IdentityID)
		if err != nil {
			return err
		}

		ok, err := g.deps.Limiter.Allow(ctx, u, req.IdentityID, now)
		if err != nil {
			return err
		}

		if !ok {
			return reject(KindRateLimited, state, fmt.Sprintf("more than %d transactions in %s",
				g.deps.Limiter.Max(), g.deps.Limiter.Window()), nil)
		}

		state = RateChecked

		err = balance.Check(current, p.delta)
		if err != nil {
			return g.ledgerError(state, err)
		}

		if req.CipherPayload != nil {
			sealed, rerr := g.openCoupon(state, *req.CipherPayload)
			if rerr != nil {
				return rerr
			}

			rec.Coupon = &sealed
		}

		newBalance, err = g.deps.Ledger.Commit(ctx, u, rec)
		if err != nil {
			return g.ledgerError(state, err)
		}

		state = LedgerApplied

		return nil
	})
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) {
			return Result{}, gerr
		}

		return Result{}, reject(KindStorageUnavailable, state, "storage is unavailable, retry with the same nonce", err)
	}

	return Result{TransactionID: rec.ID, NewBalance: newBalance, State: Completed}, nil
}

func (g *Gate) ledgerError(state State, err error) error {
	switch {
	case errors.Is(err, balance.ErrBalanceOverflow):
		return reject(KindInvalidAmount, state, "amount would take the balance out of range", nil)
	case errors.Is(err, balance.ErrInvalidAmount):
		return reject(KindInvalidAmount, state, "amount must be non-zero", nil)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return reject(KindInsufficientFunds, state, "balance is too low for this redeem", nil)
	default:
		return err
	}
}

// openCoupon decrypts the payload, checks the code format and seals the code
// again under the current key with a fresh IV for storage.
func (g *Gate) openCoupon(state State, payload domain.SealedCoupon) (domain.SealedCoupon, error) {
	code, sealed, err := g.deps.Coupons.Reseal(payload)
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrMalformed):
			return domain.SealedCoupon{}, reject(KindMalformedRequest, state, "cipherPayload is malformed", nil)
		case errors.Is(err, coupon.ErrDecryption):
			return domain.SealedCoupon{}, reject(KindDecryptionFailed, state, "coupon could not be decrypted", nil)
		default:
			return domain.SealedCoupon{}, fmt.Errorf("reseal coupon: %w", err)
		}
	}

	if !coupon.ValidCode(code) {
		return domain.SealedCoupon{}, reject(KindMalformedRequest, state, "coupon code has an invalid format", nil)
	}

	return sealed, nil
}

func (g *Gate) record(req Request, res Result, err error, took time.Duration) {
	kind := KindOf(err)

	if g.deps.Observer != nil {
		g.deps.Observer.ObserveDecision(kind, took)
	}

	attrs := []any{
		"identity_id", req.IdentityID,
		"nonce", noncePrefix(req.Nonce),
		"took", took,
	}

	switch {
	case err == nil:
		g.log.Info("transaction accepted", append(attrs, "transaction_id", res.TransactionID, "new_balance", res.NewBalance)...)
	case kind == KindStorageUnavailable:
		g.log.Error("transaction failed", append(attrs, "kind", kind, "error", err)...)
	case kind.Security():
		g.log.Warn("transaction rejected", append(attrs, "kind", kind, "error", err)...)
	default:
		g.log.Info("transaction rejected", append(attrs, "kind", kind, "error", err)...)
	}
}

func noncePrefix(n string) string {
	if len(n) > 8 {
		return n[:8]
	}

	return n
}
