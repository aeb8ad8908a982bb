package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

const (
	identity = "U1"
	nonce    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	ts       = int64(1_760_700_000_000)
)

func TestMessage_Format(t *testing.T) {
	t.Parallel()

	got := string(Message("U1", -50, "ab", 1700))
	if got != "U1:-50:ab:1700" {
		t.Fatalf("message: %q", got)
	}
}

func TestDigestMode_MatchesPlainSHA256(t *testing.T) {
	t.Parallel()

	v := NewDigest()
	sum := sha256.Sum256([]byte("U1:50:" + nonce + ":1760700000000"))

	if got := v.Sign(identity, 50, nonce, ts); got != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest tag mismatch: %s", got)
	}

	if v.Keyed() {
		t.Fatal("digest verifier reports keyed")
	}
}

func TestVerify_AcceptsOwnTagAnyCase(t *testing.T) {
	t.Parallel()

	v := NewHMAC([]byte("server-secret-server-secret-1234"))
	tag := v.Sign(identity, 50, nonce, ts)

	if !v.Verify(identity, 50, nonce, ts, tag) {
		t.Fatal("own tag rejected")
	}
	if !v.Verify(identity, 50, nonce, ts, strings.ToUpper(tag)) {
		t.Fatal("upper-case tag rejected")
	}
}

func TestVerify_DetectsSingleFieldTampering(t *testing.T) {
	t.Parallel()

	for _, v := range []*Verifier{NewDigest(), NewHMAC([]byte("k"))} {
		tag := v.Sign(identity, 50, nonce, ts)

		tampered := []struct {
			name     string
			identity string
			amount   int64
			nonce    string
			ts       int64
		}{
			{"identity", "U2", 50, nonce, ts},
			{"amount", identity, 51, nonce, ts},
			{"amount_sign", identity, -50, nonce, ts},
			{"nonce", identity, 50, strings.Replace(nonce, "0", "1", 1), ts},
			{"timestamp", identity, 50, nonce, ts + 1},
		}

		for _, tt := range tampered {
			if v.Verify(tt.identity, tt.amount, tt.nonce, tt.ts, tag) {
				t.Fatalf("keyed=%v: tampered %s accepted", v.Keyed(), tt.name)
			}
		}
	}
}

func TestHMAC_DigestTagDoesNotVerify(t *testing.T) {
	t.Parallel()

	forged := NewDigest().Sign(identity, 50, nonce, ts)

	if NewHMAC([]byte("k")).Verify(identity, 50, nonce, ts, forged) {
		t.Fatal("unkeyed tag accepted by keyed verifier")
	}
}

func TestValidateNonceAndTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in string
		ok bool
	}{
		{nonce, true},
		{strings.ToUpper(nonce), true},
		{nonce[:63], false},
		{nonce + "0", false},
		{strings.Replace(nonce, "a", "g", 1), false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateNonce(tt.in) == nil; got != tt.ok {
			t.Fatalf("ValidateNonce(%q) ok=%v, want %v", tt.in, got, tt.ok)
		}
		if got := ValidateTag(tt.in) == nil; got != tt.ok {
			t.Fatalf("ValidateTag(%q) ok=%v, want %v", tt.in, got, tt.ok)
		}
	}
}
