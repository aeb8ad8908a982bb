package coupon

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultCodeLen = 12
	MinCodeLen     = 8
	MaxCodeLen     = 16
)

// GenerateCode returns a uniformly random code of n characters from A-Z0-9.
func GenerateCode(n int) (string, error) {
	if n < MinCodeLen || n > MaxCodeLen {
		return "", fmt.Errorf("code length must be between %d and %d", MinCodeLen, MaxCodeLen)
	}

	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)

	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("random index: %w", err)
		}

		buf[i] = alphabet[idx.Int64()]
	}

	return string(buf), nil
}

// ValidCode reports whether code is 8 to 16 characters of A-Z0-9.
func ValidCode(code string) bool {
	if len(code) < MinCodeLen || len(code) > MaxCodeLen {
		return false
	}

	for i := range len(code) {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}

	return true
}
