// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"errors"

	"github.com/samber/oops"

	"github.com/chirpyard/chirpyard/pkg/errutil"
)

// ErrNotFound is returned by repositories when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by repositories when a record key collides.
var ErrAlreadyExists = errors.New("already exists")

// ErrInvalidInput marks caller mistakes such as malformed usernames or values.
var ErrInvalidInput = errors.New("invalid input")

// causeError carries the message and errors.Is matches of an underlying
// error without exposing it to errors.As. Wrapping one keeps the outer oops
// code visible when the cause already has a code of its own.
type causeError struct {
	err error
}

func (c causeError) Error() string { return c.err.Error() }

func (c causeError) Is(target error) bool { return errors.Is(c.err, target) }

// wrapCause wraps err under b so that b's code is the one reported. The
// cause's own code, if any, is kept as cause_code context.
func wrapCause(b oops.OopsErrorBuilder, err error) error {
	if code := errutil.Code(err); code != "" {
		b = b.With("cause_code", code)
	}
	return b.Wrap(causeError{err: err})
}
