// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
)

// TokenBytes is the entropy of an issued token (64 hex chars).
const TokenBytes = 32

// GenerateToken creates a random bearer token and its digest.
// The plaintext goes to the caller; only the digest is stored.
func GenerateToken() (token, digest string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("ACCOUNT_TOKEN_GENERATE_FAILED").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, DigestToken(token), nil
}

// DigestToken returns the hex SHA-256 digest stored for token.
func DigestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// matchToken returns the index of the digest matching token, or -1.
// Every digest is compared so timing does not reveal the position.
func matchToken(token string, digests []string) int {
	if token == "" {
		return -1
	}
	computed := []byte(DigestToken(token))
	found := -1
	for i, d := range digests {
		if subtle.ConstantTimeCompare(computed, []byte(d)) == 1 && found < 0 {
			found = i
		}
	}
	return found
}
