// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package store owns the PostgreSQL connection pool and schema migrations
// shared by the postgres-backed repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 250 * time.Millisecond
)

type openConfig struct {
	attempts uint64
	backoff  time.Duration
	logger   *slog.Logger
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithConnectRetry sets how many pings Open attempts and the initial backoff
// between them. Backoff doubles after each failure.
func WithConnectRetry(attempts uint64, backoff time.Duration) OpenOption {
	return func(c *openConfig) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// WithOpenLogger sets the logger used to report failed pings.
func WithOpenLogger(logger *slog.Logger) OpenOption {
	return func(c *openConfig) {
		c.logger = logger
	}
}

// Open creates a pool for dsn and pings it until the database answers or
// the retry budget runs out.
func Open(ctx context.Context, dsn string, opts ...OpenOption) (*pgxpool.Pool, error) {
	cfg := openConfig{
		attempts: DefaultConnectAttempts,
		backoff:  DefaultConnectBackoff,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.attempts == 0 {
		cfg.attempts = 1
	}
	if cfg.backoff <= 0 {
		cfg.backoff = DefaultConnectBackoff
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_DSN").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(cfg.attempts-1, retry.NewExponential(cfg.backoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			cfg.logger.WarnContext(ctx, "database ping failed", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}
