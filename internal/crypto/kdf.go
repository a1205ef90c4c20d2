package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the only salt length DeriveKey accepts
const SaltSize = 16

// KDFParams is the argon2id cost. It is persisted next to the salt so a
// vault stays unlockable if the defaults change.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memoryKiB"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDF is the cost used for new vaults
var DefaultKDF = KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

// IsZero reports whether no parameters were recorded
func (p KDFParams) IsZero() bool {
	return p == KDFParams{}
}

// OrDefault returns p, or DefaultKDF when p is unset
func (p KDFParams) OrDefault() KDFParams {
	if p.IsZero() {
		return DefaultKDF
	}
	return p
}

// NewSalt generates a fresh random salt
func NewSalt() ([]byte, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a KeySize-byte key from a password. The same password,
// salt and params always produce the same key. A salt of the wrong length
// is a programming error and panics.
func DeriveKey(password, salt []byte, params KDFParams) []byte {
	if len(salt) != SaltSize {
		panic(fmt.Sprintf("crypto: salt must be %d bytes, got %d", SaltSize, len(salt)))
	}
	p := params.OrDefault()
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeySize)
}
