// Package integrity computes and checks transaction tags.
//
// The tagged message is "identityId:amount:nonce:timestamp" with amount and
// timestamp in base 10. In HMAC mode the tag is HMAC-SHA256 under a server
// key; in digest mode it is a bare SHA-256, kept for clients that predate
// keyed tags. Tags are lowercase hex.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

const (
	// NonceHexLen is the encoded length of a 256-bit nonce.
	NonceHexLen = 64
	// TagHexLen is the encoded length of a SHA-256 sized tag.
	TagHexLen = 64
)

var (
	ErrMalformedNonce = errors.New("nonce must be 64 hex characters")
	ErrMalformedTag   = errors.New("tag must be 64 hex characters")
)

// Signer produces tags.
type Signer interface {
	Sign(identityID string, amount int64, nonce string, timestampMs int64) string
}

// Verifier signs and checks tags.
type Verifier struct {
	key []byte // nil selects digest mode
}

// NewHMAC returns a verifier keyed with key.
func NewHMAC(key []byte) *Verifier {
	return &Verifier{key: append([]byte(nil), key...)}
}

// NewDigest returns an unkeyed verifier. Anyone who knows the message format
// can forge its tags; it only detects accidental tampering.
func NewDigest() *Verifier {
	return &Verifier{}
}

// Keyed reports whether the verifier uses a secret key.
func (v *Verifier) Keyed() bool {
	return v.key != nil
}

// Message builds the exact byte string that is tagged.
func Message(identityID string, amount int64, nonce string, timestampMs int64) []byte {
	var b strings.Builder

	b.Grow(len(identityID) + len(nonce) + 44)
	b.WriteString(identityID)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(amount, 10))
	b.WriteByte(':')
	b.WriteString(nonce)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(timestampMs, 10))

	return []byte(b.String())
}

func (v *Verifier) Sign(identityID string, amount int64, nonce string, timestampMs int64) string {
	msg := Message(identityID, amount, nonce, timestampMs)

	if v.key == nil {
		sum := sha256.Sum256(msg)
		return hex.EncodeToString(sum[:])
	}

	mac := hmac.New(sha256.New, v.key)
	mac.Write(msg)

	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether tag matches the fields. Comparison is constant time
// and case-insensitive on the hex encoding.
func (v *Verifier) Verify(identityID string, amount int64, nonce string, timestampMs int64, tag string) bool {
	expected := v.Sign(identityID, amount, nonce, timestampMs)

	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(tag))) == 1
}

// ValidateNonce checks the nonce encoding.
func ValidateNonce(nonce string) error {
	if !isHex(nonce, NonceHexLen) {
		return ErrMalformedNonce
	}

	return nil
}

// ValidateTag checks the tag encoding.
func ValidateTag(tag string) error {
	if !isHex(tag, TagHexLen) {
		return ErrMalformedTag
	}

	return nil
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}

	for i := range len(s) {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}

	return true
}
