package warden

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is deliberately above the library default; credential
// hashing is supposed to be slow.
const DefaultBcryptCost = 12

// ErrEmptyPassword is returned when hashing an empty string.
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher produces and verifies one-way credential digests.
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt-backed Hasher. Costs outside the valid bcrypt
// range fall back to DefaultBcryptCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash generates a salted digest of the given password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(digest), err
}

// Verify reports whether password matches the stored digest. A malformed
// digest verifies as false, it never errors out to the caller.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
