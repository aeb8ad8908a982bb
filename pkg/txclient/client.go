// Package txclient submits signed transactions to a coingate server.
//
// A request is prepared once (fresh nonce, current timestamp, tag) and may
// be sent any number of times: the server applies a given nonce at most once,
// so resending after a timeout is safe. Preparing a new request for the same
// intent is not.
package txclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/security/integrity"
	"github.com/fastprodman/coingate/internal/services/gate"
	"github.com/fastprodman/coingate/internal/services/ratelimit"
)

const (
	// Advisory pre-check, mirrors the server default. The server decides.
	defaultLocalMax    = 10
	defaultLocalWindow = time.Minute
)

// ErrThrottled is returned without contacting the server when the local
// pre-check thinks the server would refuse the request anyway.
var ErrThrottled = errors.New("too many transactions, slow down")

// RejectedError is a rejection reported by the server.
type RejectedError struct {
	Status    int
	Kind      gate.Kind
	Message   string
	Retryable bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected (%d %s): %s", e.Status, e.Kind, e.Message)
}

// Is matches gate errors of the same kind, e.g. errors.Is(err, gate.ErrNonceReplayed).
func (e *RejectedError) Is(target error) bool {
	var gerr *gate.Error
	if errors.As(target, &gerr) {
		return gerr.Kind == e.Kind
	}

	return false
}

type Result struct {
	TransactionID string
	NewBalance    int64
}

type Client struct {
	baseURL  string
	identity string
	token    string
	signer   integrity.Signer
	http     *http.Client
	local    *ratelimit.Advisory
	now      func() time.Time
}

type Option func(c *Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocalLimit replaces the advisory pre-check; nil disables it.
func WithLocalLimit(a *ratelimit.Advisory) Option {
	return func(c *Client) { c.local = a }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client acting as identityID with the given bearer token.
// signer holds the shared tag key only (CRYPTO_TAG_KEY on the server).
func New(baseURL, identityID, token string, signer integrity.Signer, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identityID,
		token:    token,
		signer:   signer,
		http:     &http.Client{Timeout: 10 * time.Second},
		local:    ratelimit.PerWindow(defaultLocalMax, defaultLocalWindow),
		now:      time.Now,
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

// Prepare builds a signed request with a fresh 256-bit nonce.
func (c *Client) Prepare(kind domain.Kind, amount int64, description string, coupon *domain.SealedCoupon) (gate.Request, error) {
	raw := make([]byte, 32)

	_, err := rand.Read(raw)
	if err != nil {
		return gate.Request{}, fmt.Errorf("generate nonce: %w", err)
	}

	nonce := hex.EncodeToString(raw)
	ts := c.now().UnixMilli()

	return gate.Request{
		IdentityID:    c.identity,
		Amount:        amount,
		Kind:          string(kind),
		Description:   description,
		Nonce:         nonce,
		Timestamp:     ts,
		Tag:           c.signer.Sign(c.identity, amount, nonce, ts),
		CipherPayload: coupon,
	}, nil
}

// Submit prepares and sends a new transaction.
func (c *Client) Submit(ctx context.Context, kind domain.Kind, amount int64, description string, coupon *domain.SealedCoupon) (Result, error) {
	if c.local != nil && !c.local.Allow(c.identity) {
		return Result{}, ErrThrottled
	}

	req, err := c.Prepare(kind, amount, description, coupon)
	if err != nil {
		return Result{}, err
	}

	return c.Send(ctx, req)
}

type response struct {
	Success       bool   `json:"success"`
	NewBalance    int64  `json:"newBalance"`
	TransactionID string `json:"transactionId"`
	Error         string `json:"error"`
	Kind          string `json:"kind"`
	Retryable     bool   `json:"retryable"`
}

// Send posts a prepared request.
func (c *Client) Send(ctx context.Context, req gate.Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("post transaction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var out response

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return Result{}, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if !out.Success {
		return Result{}, &RejectedError{
			Status:    resp.StatusCode,
			Kind:      gate.Kind(out.Kind),
			Message:   out.Error,
			Retryable: out.Retryable,
		}
	}

	return Result{TransactionID: out.TransactionID, NewBalance: out.NewBalance}, nil
}
