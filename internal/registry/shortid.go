package registry

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ShortIDLength is the length of generated short ids.
const ShortIDLength = 8

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewShortID returns a random alphanumeric id of length n.
func NewShortID(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("short id length must be positive, got %d", n)
	}

	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate short id: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
