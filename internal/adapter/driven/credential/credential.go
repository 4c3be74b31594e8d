// Package credential provides CredentialVerifier implementations.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.CredentialVerifier = Plaintext{}
	_ driven.CredentialVerifier = (*Bcrypt)(nil)
)

// Plaintext stores credentials as supplied and compares them byte for byte.
// This is the historical storage format and the default.
type Plaintext struct{}

// Seal returns plain unchanged.
func (Plaintext) Seal(plain string) (string, error) {
	return plain, nil
}

// Verify reports whether supplied equals stored exactly (case-sensitive, no trimming).
func (Plaintext) Verify(stored, supplied string) bool {
	return stored == supplied
}

// Bcrypt stores credentials as bcrypt hashes.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a Bcrypt verifier. A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Seal hashes plain. Credentials longer than 72 bytes are refused.
func (b *Bcrypt) Seal(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether supplied hashes to stored. A stored value that is
// not a bcrypt hash never matches.
func (b *Bcrypt) Verify(stored, supplied string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
}
