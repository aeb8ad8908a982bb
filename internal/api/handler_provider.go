package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fastprodman/coingate/internal/auth"
	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/security/coupon"
	"github.com/fastprodman/coingate/internal/services/balance"
	"github.com/fastprodman/coingate/internal/services/gate"
)

const maxBodyBytes = 64 << 10

type Submitter interface {
	Submit(ctx context.Context, caller string, req gate.Request) (gate.Result, error)
}

type Ledger interface {
	Balance(ctx context.Context, identityID string) (int64, error)
	History(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error)
}

type CouponSealer interface {
	Seal(code string) (domain.SealedCoupon, error)
}

// HandlerProvider exposes the gate and the read side over HTTP.
type HandlerProvider struct {
	gate    Submitter
	ledger  Ledger
	coupons CouponSealer
	log     *slog.Logger
}

func NewHandler(g Submitter, l Ledger, c CouponSealer, log *slog.Logger) *HandlerProvider {
	return &HandlerProvider{gate: g, ledger: l, coupons: c, log: log}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// txResponse is the outcome of POST /v1/transactions.
type txResponse struct {
	Success       bool   `json:"success"`
	NewBalance    *int64 `json:"newBalance,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
}

var kindStatus = map[gate.Kind]int{
	gate.KindUnauthenticated:        http.StatusUnauthorized,
	gate.KindIdentityMismatch:       http.StatusForbidden,
	gate.KindMalformedRequest:       http.StatusBadRequest,
	gate.KindStaleOrFutureTimestamp: http.StatusBadRequest,
	gate.KindIntegrityMismatch:      http.StatusBadRequest,
	gate.KindNonceReplayed:          http.StatusConflict,
	gate.KindRateLimited:            http.StatusTooManyRequests,
	gate.KindInsufficientFunds:      http.StatusConflict,
	gate.KindInvalidAmount:          http.StatusUnprocessableEntity,
	gate.KindDecryptionFailed:       http.StatusUnprocessableEntity,
	gate.KindStorageUnavailable:     http.StatusServiceUnavailable,
}

// StatusFor maps a rejection kind to its HTTP status.
func StatusFor(kind gate.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}

	return http.StatusInternalServerError
}

func writeRejection(w http.ResponseWriter, kind gate.Kind, msg string) {
	writeJSON(w, StatusFor(kind), txResponse{
		Error:     msg,
		Kind:      string(kind),
		Retryable: kind.Retryable(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}

	return err
}

// --- Handlers ---

// SubmitTransactionHandler handles POST /v1/transactions
func (h *HandlerProvider) SubmitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req gate.Request

	err := decodeBody(w, r, &req)
	if err != nil {
		writeRejection(w, gate.KindMalformedRequest, "invalid JSON body")
		return
	}

	caller, _ := auth.FromContext(r.Context())

	res, err := h.gate.Submit(r.Context(), caller.ID, req)
	if err != nil {
		var gerr *gate.Error
		if errors.As(err, &gerr) {
			writeRejection(w, gerr.Kind, gerr.Message)
			return
		}

		h.log.ErrorContext(r.Context(), "submit transaction", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, txResponse{
		Success:       true,
		NewBalance:    &res.NewBalance,
		TransactionID: res.TransactionID,
	})
}

// GetBalanceHandler handles GET /v1/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	bal, err := h.ledger.Balance(r.Context(), caller.ID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "get balance", "identity_id", caller.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"identityId": caller.ID,
		"balance":    bal,
	})
}

// ListTransactionsHandler handles GET /v1/transactions?limit=N
func (h *HandlerProvider) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		limit = n
	}

	recs, err := h.ledger.History(r.Context(), caller.ID, limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list transactions", "identity_id", caller.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	if recs == nil {
		recs = []domain.TransactionRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": recs})
}

type couponRequest struct {
	Length int `json:"length"`
}

type couponResponse struct {
	Code string `json:"code"`
	domain.SealedCoupon
}

// IssueCouponHandler handles POST /v1/admin/coupons
func (h *HandlerProvider) IssueCouponHandler(w http.ResponseWriter, r *http.Request) {
	req := couponRequest{Length: coupon.DefaultCodeLen}

	if r.ContentLength != 0 {
		err := decodeBody(w, r, &req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	code, err := coupon.GenerateCode(req.Length)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sealed, err := h.coupons.Seal(code)
	if err != nil {
		h.log.ErrorContext(r.Context(), "seal coupon", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusCreated, couponResponse{Code: code, SealedCoupon: sealed})
}

func (h *HandlerProvider) HealthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			err := ping(r.Context())
			if err != nil {
				h.log.WarnContext(r.Context(), "health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})

				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// compile-time checks against the concrete services
var (
	_ Submitter    = (*gate.Gate)(nil)
	_ Ledger       = (*balance.Ledger)(nil)
	_ CouponSealer = (*coupon.Cipher)(nil)
)
