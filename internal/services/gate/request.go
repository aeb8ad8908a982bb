package gate

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fastprodman/coingate/internal/domain"
	"github.com/fastprodman/coingate/internal/security/integrity"
)

// MaxDescriptionLen bounds the free-text label in runes.
const MaxDescriptionLen = 256

// Request is a proposed balance mutation as submitted by a client.
type Request struct {
	IdentityID    string               `json:"identityId"`
	Amount        int64                `json:"amount"`
	Kind          string               `json:"kind"`
	Description   string               `json:"description"`
	Nonce         string               `json:"nonce"`
	Timestamp     int64                `json:"timestamp"`
	Tag           string               `json:"tag"`
	CipherPayload *domain.SealedCoupon `json:"cipherPayload,omitempty"`
}

// Result describes an accepted request.
type Result struct {
	TransactionID string `json:"transactionId"`
	NewBalance    int64  `json:"newBalance"`
	State         State  `json:"-"`
}

type parsed struct {
	kind  domain.Kind
	delta int64
	nonce string
}

func parse(req Request) (parsed, string) {
	if strings.TrimSpace(req.IdentityID) == "" {
		return parsed{}, "identityId is required"
	}

	kind, err := domain.ParseKind(req.Kind)
	if err != nil {
		return parsed{}, "kind must be earn or redeem"
	}

	if req.Amount == math.MinInt64 {
		return parsed{}, "amount out of range"
	}

	if err := integrity.ValidateNonce(req.Nonce); err != nil {
		return parsed{}, err.Error()
	}

	if err := integrity.ValidateTag(req.Tag); err != nil {
		return parsed{}, err.Error()
	}

	if utf8.RuneCountInString(req.Description) > MaxDescriptionLen {
		return parsed{}, "description is too long"
	}

	if p := req.CipherPayload; p != nil && (p.Ciphertext == "" || p.IV == "" || p.KeyID == "") {
		return parsed{}, "cipherPayload needs ciphertext, iv and keyId"
	}

	return parsed{
		kind:  kind,
		delta: kind.Delta(req.Amount),
		nonce: strings.ToLower(req.Nonce),
	}, ""
}
