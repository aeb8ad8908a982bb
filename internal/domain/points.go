package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind says which direction a transaction moves coins.
type Kind string

const (
	KindEarn   Kind = "earn"
	KindRedeem Kind = "redeem"
)

// ParseKind accepts "earn" or "redeem" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindEarn:
		return KindEarn, nil
	case KindRedeem:
		return KindRedeem, nil
	default:
		return "", fmt.Errorf("invalid kind %q", s)
	}
}

// Delta converts a requested amount into the signed balance change for k.
// The sign of amount is ignored; kind alone decides the direction.
func (k Kind) Delta(amount int64) int64 {
	if amount < 0 {
		amount = -amount
	}

	if k == KindRedeem {
		return -amount
	}

	return amount
}

// SealedCoupon is a coupon code encrypted under a server-held key.
// KeyID names the key; the key itself never leaves the key store.
type SealedCoupon struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	KeyID      string `json:"keyId"`
}

// TransactionRecord is the persisted outcome of an accepted transaction.
type TransactionRecord struct {
	ID          string        `json:"id"`
	IdentityID  string        `json:"identityId"`
	Amount      int64         `json:"amount"` // signed delta applied to the balance
	Kind        Kind          `json:"kind"`
	Description string        `json:"description"`
	Nonce       string        `json:"-"`
	Tag         string        `json:"-"`
	Coupon      *SealedCoupon `json:"-"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// StatusCompleted is the only status an accepted transaction is stored with.
const StatusCompleted = "completed"
