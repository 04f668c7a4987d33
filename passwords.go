package authbase

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is the one-way password hashing contract. The salt is embedded in
// the opaque output, so no separate salt storage is needed.
type Hasher interface {
	// Hash produces an opaque hash of the plaintext.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches the stored hash. A wrong
	// password is (false, nil), never an error; comparison time does not
	// depend on where the mismatch occurs.
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements Hasher with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a BcryptHasher at bcrypt's default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(out), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// dummyPasswordHash is verified against when a login names an unknown
// email, so the response time does not reveal whether the account exists.
// It is a real bcrypt hash of random bytes that matches no password.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
