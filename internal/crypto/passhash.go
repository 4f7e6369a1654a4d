// Package crypto implements master-password hashing and credential encryption.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost factor vaults have historically been created with.
const DefaultBcryptCost = 12

// MaxMasterPasswordLen is the longest master password bcrypt can hash without truncation.
const MaxMasterPasswordLen = 72

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// PasswordHasher hashes and verifies master passwords with bcrypt.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher returns a hasher with the given bcrypt cost (clamped to bcrypt's bounds).
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d above maximum %d", cost, bcrypt.MaxCost)
	}
	// dummy is compared against when the account does not exist so both paths cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte("fortivault-dummy"), cost)
	if err != nil {
		return nil, err
	}
	return &PasswordHasher{cost: cost, dummy: dummy}, nil
}

// Cost returns the configured bcrypt cost factor.
func (h *PasswordHasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash of password.
func (h *PasswordHasher) Hash(password []byte) ([]byte, error) {
	if len(password) > MaxMasterPasswordLen {
		return nil, bcrypt.ErrPasswordTooLong
	}
	return bcrypt.GenerateFromPassword(password, h.cost)
}

// Verify reports whether password matches hash. A nil hash burns one dummy comparison and fails.
func (h *PasswordHasher) Verify(password, hash []byte) bool {
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(h.dummy, password)
		return false
	}
	err := bcrypt.CompareHashAndPassword(hash, password)
	return err == nil
}

// IsTooLong reports whether err was caused by an over-long master password.
func IsTooLong(err error) bool {
	return errors.Is(err, bcrypt.ErrPasswordTooLong)
}
