// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Work factor bounds accepted by Hash.
const (
	MinCost     = bcrypt.MinCost
	MaxCost     = bcrypt.MaxCost
	DefaultCost = 12
)

const argon2Prefix = "$argon2id$"

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash produces a salted hash with the given work factor.
	Hash(password string, cost int) (string, error)

	// Verify checks password against hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade reports whether hash should be replaced by a fresh Hash(password, cost).
	NeedsUpgrade(hash string, cost int) bool
}

// BcryptHasher implements PasswordHasher with bcrypt. It also verifies
// argon2id PHC strings so imported records can log in and be upgraded.
type BcryptHasher struct{}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a new BcryptHasher.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{}
}

// Hash produces a bcrypt hash of password.
func (h *BcryptHasher) Hash(password string, cost int) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}
	if cost < MinCost || cost > MaxCost {
		return "", oops.Code("ACCOUNT_INVALID_COST").
			With("cost", cost).
			Wrapf(ErrInvalidInput, "cost must be between %d and %d", MinCost, MaxCost)
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", oops.Code("ACCOUNT_INVALID_PASSWORD").Wrapf(ErrInvalidInput, "password exceeds 72 bytes")
	}
	if err != nil {
		return "", oops.Code("ACCOUNT_HASH_FAILED").Wrap(err)
	}
	return string(out), nil
}

// Verify checks password against a bcrypt or argon2id hash.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	if strings.HasPrefix(hash, argon2Prefix) {
		return verifyArgon2id(password, hash)
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("ACCOUNT_INVALID_HASH").Wrap(err)
	}
}

// NeedsUpgrade returns true for argon2id hashes and bcrypt hashes below cost.
func (h *BcryptHasher) NeedsUpgrade(hash string, cost int) bool {
	if strings.HasPrefix(hash, argon2Prefix) {
		return true
	}
	current, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return current < cost
}

func validatePassword(password string) error {
	if password == "" {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").Wrapf(ErrInvalidInput, "password cannot be empty")
	}
	if !utf8.ValidString(password) {
		return oops.Code("ACCOUNT_INVALID_PASSWORD").Wrapf(ErrInvalidInput, "password is not valid UTF-8")
	}
	return nil
}

// verifyArgon2id checks a PHC string of the form
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code("ACCOUNT_INVALID_HASH").With("version", version).Errorf("unsupported argon2 version")
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Wrap(err)
	}
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<10 {
		return false, oops.Code("ACCOUNT_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
