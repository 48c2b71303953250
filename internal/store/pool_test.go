// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chirpyard/chirpyard/pkg/errutil"
)

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost:notaport/chirpyard")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DSN")
}

func TestOpen_UnreachableGivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Open(ctx, "postgres://chirpyard@127.0.0.1:1/chirpyard?connect_timeout=1",
		WithConnectRetry(2, time.Millisecond),
		WithOpenLogger(slog.New(slog.DiscardHandler)),
	)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")
	errutil.AssertErrorContext(t, err, "attempts", 2)
}
