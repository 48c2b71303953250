// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package account implements account management and session authentication.
//
// # Components
//
// The Manager coordinates four responsibilities over a single record shape:
//   - credentials: bcrypt hashing, verification and bearer tokens
//   - lifecycle: Create, Exists, IsBanned, SetBanned and Delete with cascade
//   - settings: UpdateSettings with a protected-field allowlist
//   - views: View projects a redacted mapping of an account
//
// # Outcomes
//
// Every operation returns an Outcome and an error. Precondition results such
// as NotFound, Exists or Banned are reported with a nil error. IOError and
// InvalidInput always carry an error that wraps ErrNotFound, ErrAlreadyExists
// or ErrInvalidInput where applicable.
//
// # Consistency
//
// The Manager performs no locking. Concurrent writers to the same account
// race on load-then-write and the last write wins. Delete removes the
// account record first and then cleans chats, posts and netlog entries as
// independent best-effort steps; failures there are logged and reported in
// the CascadeReport but never change the Deleted outcome.
package account
