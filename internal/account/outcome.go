// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

// Outcome is the result code of a Manager operation.
type Outcome int

// Outcome values. The zero value is deliberately not a valid result.
const (
	Exists Outcome = iota + 1
	NotFound
	IOError
	Banned
	NotBanned
	Created
	Deleted
	Updated
	Authenticated
	NotAuthenticated
	AuthenticatedByToken
	InvalidInput
	RateLimited
)

var outcomeNames = map[Outcome]string{
	Exists:               "exists",
	NotFound:             "not_found",
	IOError:              "io_error",
	Banned:               "banned",
	NotBanned:            "not_banned",
	Created:              "created",
	Deleted:              "deleted",
	Updated:              "updated",
	Authenticated:        "authenticated",
	NotAuthenticated:     "not_authenticated",
	AuthenticatedByToken: "authenticated_by_token",
	InvalidInput:         "invalid_input",
	RateLimited:          "rate_limited",
}

// String returns the snake_case name used in logs and metrics.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// IsAuthenticated reports whether o is a successful authentication result.
func (o Outcome) IsAuthenticated() bool {
	return o == Authenticated || o == AuthenticatedByToken
}
