package gate

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable reason for a rejection.
type Kind string

const (
	KindUnauthenticated        Kind = "Unauthenticated"
	KindIdentityMismatch       Kind = "IdentityMismatch"
	KindMalformedRequest       Kind = "MalformedRequest"
	KindStaleOrFutureTimestamp Kind = "StaleOrFutureTimestamp"
	KindIntegrityMismatch      Kind = "IntegrityMismatch"
	KindNonceReplayed          Kind = "NonceReplayed"
	KindRateLimited            Kind = "RateLimited"
	KindInsufficientFunds      Kind = "InsufficientFunds"
	KindInvalidAmount          Kind = "InvalidAmount"
	KindStorageUnavailable     Kind = "StorageUnavailable"
	KindDecryptionFailed       Kind = "DecryptionFailed"
)

// Kinds lists every rejection kind.
var Kinds = []Kind{
	KindUnauthenticated,
	KindIdentityMismatch,
	KindMalformedRequest,
	KindStaleOrFutureTimestamp,
	KindIntegrityMismatch,
	KindNonceReplayed,
	KindRateLimited,
	KindInsufficientFunds,
	KindInvalidAmount,
	KindStorageUnavailable,
	KindDecryptionFailed,
}

// Retryable reports whether the caller may resubmit the same request,
// with the same nonce. Every other kind is final for that nonce.
func (k Kind) Retryable() bool {
	return k == KindStorageUnavailable
}

// Security reports kinds that may indicate an attack rather than a client bug.
func (k Kind) Security() bool {
	switch k {
	case KindIdentityMismatch, KindIntegrityMismatch, KindNonceReplayed, KindRateLimited:
		return true
	default:
		return false
	}
}

// Error is a rejection. State is the last state the request reached.
type Error struct {
	Kind    Kind
	Message string
	State   State
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the Err* values below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Retryable() bool {
	return e.Kind.Retryable()
}

var (
	ErrUnauthenticated        = &Error{Kind: KindUnauthenticated}
	ErrIdentityMismatch       = &Error{Kind: KindIdentityMismatch}
	ErrMalformedRequest       = &Error{Kind: KindMalformedRequest}
	ErrStaleOrFutureTimestamp = &Error{Kind: KindStaleOrFutureTimestamp}
	ErrIntegrityMismatch      = &Error{Kind: KindIntegrityMismatch}
	ErrNonceReplayed          = &Error{Kind: KindNonceReplayed}
	ErrRateLimited            = &Error{Kind: KindRateLimited}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds}
	ErrInvalidAmount          = &Error{Kind: KindInvalidAmount}
	ErrStorageUnavailable     = &Error{Kind: KindStorageUnavailable}
	ErrDecryptionFailed       = &Error{Kind: KindDecryptionFailed}
)

// KindOf extracts the rejection kind from err, or "" when err is not a rejection.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}

	return ""
}

func reject(kind Kind, state State, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, State: state, Err: err}
}
