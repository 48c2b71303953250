// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package config loads chirpyard settings from defaults, a YAML file and
// command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Storage backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full set of recognized keys.
type Config struct {
	DatabaseURL       string        `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection URL; falls back to DATABASE_URL"`
	RedisURL          string        `koanf:"redis_url" json:"redis_url,omitempty" jsonschema:"description=Redis URL for shared attempt throttling; falls back to REDIS_URL"`
	Store             string        `koanf:"store" json:"store,omitempty" jsonschema:"enum=postgres,enum=memory"`
	LogFormat         string        `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel          string        `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	BcryptCost        int           `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" jsonschema:"minimum=4,maximum=31"`
	AuthAttemptWindow time.Duration `koanf:"auth_attempt_window" json:"auth_attempt_window,omitempty" jsonschema:"type=string,pattern=^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"`
	ReservedUsernames []string      `koanf:"reserved_usernames" json:"reserved_usernames,omitempty" jsonschema:"description=Glob patterns matched against lowercased usernames"`
	ExtraProfanities  []string      `koanf:"extra_profanities" json:"extra_profanities,omitempty" jsonschema:"description=Words added to the built-in profanity dictionary"`
	FalsePositives    []string      `koanf:"false_positives" json:"false_positives,omitempty" jsonschema:"description=Words never treated as profane"`
	MaxValueLength    int           `koanf:"max_value_length" json:"max_value_length,omitempty" jsonschema:"minimum=1"`
	MetricsAddr       string        `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Listen address for /metrics and health probes; empty disables"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store:             StorePostgres,
		LogFormat:         "json",
		LogLevel:          "info",
		BcryptCost:        12,
		AuthAttemptWindow: time.Second,
		ReservedUsernames: []string{"admin*", "moderator*", "mod", "server", "system"},
		MaxValueLength:    360,
	}
}

// values flattens c into koanf keys.
func (c Config) values() map[string]any {
	return map[string]any{
		"database_url":        c.DatabaseURL,
		"redis_url":           c.RedisURL,
		"store":               c.Store,
		"log_format":          c.LogFormat,
		"log_level":           c.LogLevel,
		"bcrypt_cost":         c.BcryptCost,
		"auth_attempt_window": c.AuthAttemptWindow,
		"reserved_usernames":  c.ReservedUsernames,
		"extra_profanities":   c.ExtraProfanities,
		"false_positives":     c.FalsePositives,
		"max_value_length":    c.MaxValueLength,
		"metrics_addr":        c.MetricsAddr,
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").With("key", "database_url").
				Errorf("database_url (or DATABASE_URL) is required for the postgres store")
		}
	case StoreMemory:
	default:
		return oops.Code("CONFIG_INVALID").With("key", "store").
			Errorf("store must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("key", "log_format").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return oops.Code("CONFIG_INVALID").With("key", "bcrypt_cost").
			Errorf("bcrypt_cost must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.AuthAttemptWindow <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "auth_attempt_window").
			Errorf("auth_attempt_window must be positive, got %s", c.AuthAttemptWindow)
	}
	if c.MaxValueLength < 1 {
		return oops.Code("CONFIG_INVALID").With("key", "max_value_length").
			Errorf("max_value_length must be positive, got %d", c.MaxValueLength)
	}
	return nil
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is the YAML file to read. Empty skips the file layer.
	Path string
	// Optional tolerates a missing file at Path.
	Optional bool
	// Flags are applied last; only flags the user changed take effect.
	// Flag names map to keys with dashes replaced by underscores.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load layers defaults, the file at opts.Path and changed flags, applies the
// environment fallbacks and validates the result.
func Load(opts LoadOptions) (Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")
	for key, val := range Default().values() {
		if err := k.Set(key, val); err != nil {
			return Config{}, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && opts.Optional:
		case err != nil:
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		default:
			if err := ValidateYAML(data); err != nil {
				return Config{}, oops.With("path", opts.Path).Wrap(err)
			}
			if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
				return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("path", opts.Path).Wrap(err)
			}
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = getenv("DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = getenv("REDIS_URL")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
