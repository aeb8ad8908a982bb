// Package coupon seals and opens coupon codes with AES-256-GCM.
//
// Every encryption draws a fresh 96-bit IV from crypto/rand. Keys are looked
// up by id in the server key store; key bytes never travel with a payload.
package coupon

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/fastprodman/coingate/internal/domain"
)

const (
	KeySize = 32
	IVSize  = 12
)

var (
	// ErrDecryption covers every way a payload can fail to open: wrong key,
	// altered IV or ciphertext, unknown key id. Callers never get a partial
	// plaintext.
	ErrDecryption = errors.New("coupon decryption failed")
	// ErrMalformed means the payload is not hex or the IV has the wrong size.
	ErrMalformed = errors.New("malformed coupon payload")
)

// Encrypt seals plaintext under key with a fresh random IV.
func Encrypt(plaintext, key []byte) (ciphertext, iv []byte, err error) {
	return encrypt(rand.Reader, plaintext, key)
}

func encrypt(random io.Reader, plaintext, key []byte) ([]byte, []byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv := make([]byte, IVSize)

	_, err = io.ReadFull(random, iv)
	if err != nil {
		return nil, nil, fmt.Errorf("read iv: %w", err)
	}

	return aead.Seal(nil, iv, plaintext, nil), iv, nil
}

// Decrypt opens ciphertext. Any authentication failure yields ErrDecryption.
func Decrypt(ciphertext, iv, key []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrMalformed, IVSize)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	return aead, nil
}

// KeyStore resolves coupon key ids to key bytes.
type KeyStore interface {
	CouponKey(id string) ([]byte, error)
	CurrentCouponKeyID() string
}

// Cipher works on hex-encoded sealed coupons.
type Cipher struct {
	keys KeyStore
}

func NewCipher(keys KeyStore) *Cipher {
	return &Cipher{keys: keys}
}

// Seal encrypts code under the current key.
func (c *Cipher) Seal(code string) (domain.SealedCoupon, error) {
	keyID := c.keys.CurrentCouponKeyID()

	key, err := c.keys.CouponKey(keyID)
	if err != nil {
		return domain.SealedCoupon{}, fmt.Errorf("coupon key: %w", err)
	}

	ct, iv, err := Encrypt([]byte(code), key)
	if err != nil {
		return domain.SealedCoupon{}, fmt.Errorf("encrypt coupon: %w", err)
	}

	return domain.SealedCoupon{
		Ciphertext: hex.EncodeToString(ct),
		IV:         hex.EncodeToString(iv),
		KeyID:      keyID,
	}, nil
}

// Open decrypts a sealed coupon.
func (c *Cipher) Open(sc domain.SealedCoupon) (string, error) {
	ct, err := hex.DecodeString(sc.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not hex", ErrMalformed)
	}

	iv, err := hex.DecodeString(sc.IV)
	if err != nil {
		return "", fmt.Errorf("%w: iv is not hex", ErrMalformed)
	}

	key, err := c.keys.CouponKey(sc.KeyID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	plaintext, err := Decrypt(ct, iv, key)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// Reseal opens sc and seals the code again under the current key with a new IV.
func (c *Cipher) Reseal(sc domain.SealedCoupon) (string, domain.SealedCoupon, error) {
	code, err := c.Open(sc)
	if err != nil {
		return "", domain.SealedCoupon{}, err
	}

	out, err := c.Seal(code)
	if err != nil {
		return "", domain.SealedCoupon{}, err
	}

	return code, out, nil
}
