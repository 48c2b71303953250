// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/chirpyard/chirpyard/internal/config"
)

// NewRootCmd creates the root command. A nil deps uses the real backends.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "chirpyard",
		Short: "Chirpyard account administration",
		Long: `Chirpyard manages user accounts for the chirpyard social service:
creation, authentication, bearer tokens, settings, bans and deletion.`,
		SilenceUsage: true,
	}

	defaults := config.Default()
	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file path (default $XDG_CONFIG_HOME/chirpyard/config.yaml)")
	pf.String("store", defaults.Store, "storage backend: postgres or memory")
	pf.String("database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	pf.String("redis-url", "", "Redis URL for attempt throttling (default $REDIS_URL)")
	pf.String("log-format", defaults.LogFormat, "log format: json or text")
	pf.String("log-level", defaults.LogLevel, "log level: debug, info, warn or error")
	pf.Int("bcrypt-cost", defaults.BcryptCost, "default bcrypt cost (4-31)")
	pf.String("metrics-addr", "", "serve /metrics and health probes on this address while the command runs")
	pf.Duration("auth-attempt-window", defaults.AuthAttemptWindow, "minimum spacing between authentication attempts per account")

	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewAccountCmd(deps))

	return cmd
}
