// Package random provides a crypto/rand backed RandomSource.
package random

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// alphabet holds the base-36 digits fragments are drawn from.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Compile-time interface satisfaction check.
var _ driven.RandomSource = (*Source)(nil)

// Source draws lowercase base-36 fragments from a random reader.
type Source struct {
	reader io.Reader
}

// NewSource creates a Source reading from crypto/rand.
func NewSource() *Source {
	return &Source{reader: rand.Reader}
}

// Fragment returns n random base-36 characters.
func (s *Source) Fragment(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("fragment length %d is negative", n)
	}

	limit := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(s.reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random index: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
