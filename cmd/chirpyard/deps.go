// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/chirpyard/chirpyard/internal/account"
	"github.com/chirpyard/chirpyard/internal/account/memstore"
	"github.com/chirpyard/chirpyard/internal/account/postgres"
	"github.com/chirpyard/chirpyard/internal/config"
	"github.com/chirpyard/chirpyard/internal/contentpolicy"
	"github.com/chirpyard/chirpyard/internal/logging"
	"github.com/chirpyard/chirpyard/internal/observability"
	"github.com/chirpyard/chirpyard/internal/ratelimit"
	"github.com/chirpyard/chirpyard/internal/store"
	"github.com/chirpyard/chirpyard/internal/xdg"
)

// Backend is the storage and throttling a session runs against.
type Backend struct {
	Repos   account.Repositories
	Limiter account.AttemptLimiter
	// Ping backs the readiness probe. Nil means always ready.
	Ping  func(ctx context.Context) error
	Close func()
}

// Migrator is the subset of *store.Migrator the migrate command drives.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// Deps holds the injectable collaborators of the CLI.
// Nil fields use their default implementations.
type Deps struct {
	// BackendFactory opens storage for cfg.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error)

	// MigratorFactory opens a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ConfigPathGetter returns the default config path.
	// Default: xdg.ConfigFile
	ConfigPathGetter func() (string, error)

	// Getenv resolves environment fallbacks.
	// Default: os.Getenv
	Getenv func(string) string
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.BackendFactory == nil {
		out.BackendFactory = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.ConfigPathGetter == nil {
		out.ConfigPathGetter = xdg.ConfigFile
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	return &out
}

// loadConfig resolves the config for cmd from its file and flags.
func (d *Deps) loadConfig(cmd *cobra.Command) (config.Config, error) {
	opts := config.LoadOptions{Flags: cmd.Flags(), Getenv: d.Getenv}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, oops.Code("CLI_FLAGS_INVALID").Wrap(err)
	}
	if path == "" {
		if path, err = d.ConfigPathGetter(); err != nil {
			return config.Config{}, err
		}
		opts.Optional = true
	}
	opts.Path = path
	return config.Load(opts)
}

// session is one CLI invocation's wiring.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	manager *account.Manager
	close   func()
}

func (d *Deps) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := d.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Setup(logging.Options{
		Service: "chirpyard",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	policy, err := contentpolicy.New(contentpolicy.Config{
		ReservedUsernames: cfg.ReservedUsernames,
		ExtraProfanities:  cfg.ExtraProfanities,
		FalsePositives:    cfg.FalsePositives,
	})
	if err != nil {
		return nil, err
	}

	backend, err := d.BackendFactory(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []account.ManagerOption{
		account.WithLogger(logger),
		account.WithDefaultCost(cfg.BcryptCost),
		account.WithMaxValueLength(cfg.MaxValueLength),
	}
	if backend.Limiter != nil {
		opts = append(opts, account.WithAttemptLimiter(backend.Limiter))
	}
	manager, err := account.NewManager(backend.Repos, account.NewBcryptHasher(), policy, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, manager: manager, close: backend.Close}
	if cfg.MetricsAddr != "" {
		if err := s.serveMetrics(backend.Ping); err != nil {
			backend.Close()
			return nil, err
		}
	}
	return s, nil
}

// serveMetrics exposes metrics and health probes for the life of the session.
func (s *session) serveMetrics(ping observability.ReadinessChecker) error {
	srv := observability.NewServer(s.cfg.MetricsAddr, ping, logging.Component(s.logger, "observability"))
	if _, err := srv.Start(); err != nil {
		return err
	}
	closeBackend := s.close
	s.close = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			s.logger.Warn("stopping observability server", "error", err)
		}
		closeBackend()
	}
	return nil
}

// openBackend connects the configured store and, when a Redis URL is set,
// a shared attempt limiter. Without Redis the limiter is process-local.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	b := &Backend{Close: closeAll}
	switch cfg.Store {
	case config.StoreMemory:
		b.Repos = memstore.New().Repositories()
	default:
		pool, err := store.Open(ctx, cfg.DatabaseURL, store.WithOpenLogger(logging.Component(logger, "store")))
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		b.Repos = postgres.NewRepositories(pool)
		b.Ping = pool.Ping
	}

	if cfg.RedisURL == "" {
		limiter := ratelimit.NewMemoryStore(cfg.AuthAttemptWindow, 0)
		closers = append(closers, func() { _ = limiter.Close() })
		b.Limiter = limiter
		return b, nil
	}

	client, err := ratelimit.DialRedis(cfg.RedisURL)
	if err != nil {
		closeAll()
		return nil, err
	}
	limiter := ratelimit.NewRedisStore(client, cfg.AuthAttemptWindow, ratelimit.DefaultRedisPrefix)
	closers = append(closers, func() { _ = limiter.Close() })

	backoff := retry.WithMaxRetries(store.DefaultConnectAttempts-1, retry.NewExponential(store.DefaultConnectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := limiter.Ping(ctx); pingErr != nil {
			logger.WarnContext(ctx, "redis ping failed", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		closeAll()
		return nil, oops.Code("REDIS_CONNECT_FAILED").Wrap(err)
	}
	b.Limiter = limiter
	if dbPing := b.Ping; dbPing != nil {
		b.Ping = func(ctx context.Context) error {
			if err := dbPing(ctx); err != nil {
				return err
			}
			return limiter.Ping(ctx)
		}
	} else {
		b.Ping = limiter.Ping
	}
	return b, nil
}
