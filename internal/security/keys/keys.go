// Package keys derives every server-side secret from one master key with
// HKDF-SHA256. Derived keys are cached and never leave the process.
//
// The tag key is the one secret shared with signing clients. It can be set
// explicitly with UseTagKey so that clients never need the master key, from
// which every coupon key is derived.
package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of every derived key (AES-256, HMAC-SHA256).
	KeySize = 32

	tagInfo          = "coingate/tag"
	couponInfoPrefix = "coingate/coupon/"
)

var ErrUnknownKey = errors.New("unknown key id")

// Store hands out derived keys. Coupon key ids must be registered up front so
// a client cannot make the server derive keys for arbitrary ids.
type Store struct {
	master    []byte
	currentID string

	mu      sync.Mutex
	tagKey  []byte
	allowed map[string]struct{}
	cache   map[string][]byte
}

// New returns a store whose current coupon key is currentID. retiredIDs stay
// valid for decryption only.
func New(master []byte, currentID string, retiredIDs ...string) (*Store, error) {
	if len(master) < KeySize {
		return nil, fmt.Errorf("master key must be at least %d bytes", KeySize)
	}

	if currentID == "" {
		return nil, errors.New("current coupon key id is empty")
	}

	allowed := map[string]struct{}{currentID: {}}
	for _, id := range retiredIDs {
		allowed[id] = struct{}{}
	}

	return &Store{
		master:    append([]byte(nil), master...),
		currentID: currentID,
		allowed:   allowed,
		cache:     make(map[string][]byte),
	}, nil
}

// CurrentCouponKeyID is the id new coupons are sealed under.
func (s *Store) CurrentCouponKeyID() string {
	return s.currentID
}

// UseTagKey replaces the derived tag key with key.
func (s *Store) UseTagKey(key []byte) error {
	if len(key) < KeySize {
		return fmt.Errorf("tag key must be at least %d bytes, got %d", KeySize, len(key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tagKey = append([]byte(nil), key...)

	return nil
}

// TagKey is the secret for transaction tags.
func (s *Store) TagKey() []byte {
	s.mu.Lock()
	explicit := s.tagKey
	s.mu.Unlock()

	if explicit != nil {
		return explicit
	}

	key, err := s.derive(tagInfo)
	if err != nil {
		// hkdf only fails when asked for more than 255*32 bytes.
		panic(fmt.Sprintf("derive tag key: %v", err))
	}

	return key
}

// CouponKey returns the AES-256 key registered under id.
func (s *Store) CouponKey(id string) ([]byte, error) {
	if _, ok := s.allowed[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}

	return s.derive(couponInfoPrefix + id)
}

func (s *Store) derive(info string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.cache[info]; ok {
		return key, nil
	}

	key := make([]byte, KeySize)

	_, err := io.ReadFull(hkdf.New(sha256.New, s.master, nil, []byte(info)), key)
	if err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}

	s.cache[info] = key

	return key, nil
}
