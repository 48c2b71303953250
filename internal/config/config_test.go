// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirpyard/chirpyard/internal/contentpolicy"
	"github.com/chirpyard/chirpyard/pkg/errutil"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("store", StorePostgres, "")
	fs.String("database-url", "", "")
	fs.String("log-format", "json", "")
	fs.Int("bcrypt-cost", 12, "")
	fs.Duration("auth-attempt-window", time.Second, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{
		Getenv: func(key string) string {
			if key == "DATABASE_URL" {
				return "postgres://env/chirpyard"
			}
			return ""
		},
	})
	require.NoError(t, err)

	want := Default()
	want.DatabaseURL = "postgres://env/chirpyard"
	assert.Equal(t, want, cfg)
}

func TestDefault_ReservedUsernames(t *testing.T) {
	policy, err := contentpolicy.New(contentpolicy.Config{ReservedUsernames: Default().ReservedUsernames})
	require.NoError(t, err)

	tests := []struct {
		username string
		reserved bool
	}{
		{"Modesto", false},
		{"Modern", false},
		{"modular", false},
		{"mod", true},
		{"MOD", true},
		{"moderator1", true},
		{"Administrator", true},
		{"server", true},
		{"system", true},
		{"servers", false},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			err := policy.ValidateUsername(tt.username)
			if tt.reserved {
				errutil.AssertErrorCode(t, err, "POLICY_RESERVED_USERNAME")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://file/chirpyard
redis_url: redis://cache:6379/0
log_format: text
bcrypt_cost: 10
auth_attempt_window: 2s
reserved_usernames: ["root"]
extra_profanities: ["blorpt"]
false_positives: ["scunthorpe"]
`)
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--bcrypt-cost=14"}))

	cfg, err := Load(LoadOptions{
		Path:  path,
		Flags: fs,
		Getenv: func(string) string {
			return "redis://ignored"
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/chirpyard", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL, "file value wins over env fallback")
	assert.Equal(t, "text", cfg.LogFormat, "unchanged flag default must not clobber the file")
	assert.Equal(t, 14, cfg.BcryptCost, "changed flag wins")
	assert.Equal(t, 2*time.Second, cfg.AuthAttemptWindow)
	assert.Equal(t, []string{"root"}, cfg.ReservedUsernames, "lists replace rather than merge")
	assert.Equal(t, []string{"blorpt"}, cfg.ExtraProfanities)
	assert.Equal(t, []string{"scunthorpe"}, cfg.FalsePositives)
	assert.Equal(t, 360, cfg.MaxValueLength)
}

func TestLoad_MemoryStoreNeedsNoDatabase(t *testing.T) {
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--store=memory"}))

	cfg, err := Load(LoadOptions{Flags: fs, Getenv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"unknown key", "databse_url: postgres://x\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad enum", "store: mongo\n", "CONFIG_SCHEMA_VIOLATION"},
		{"cost out of range", "bcrypt_cost: 40\n", "CONFIG_SCHEMA_VIOLATION"},
		{"bad duration", "auth_attempt_window: soon\n", "CONFIG_SCHEMA_VIOLATION"},
		{"malformed yaml", "store: [\n", "CONFIG_INVALID_YAML"},
		{"missing database url", "store: postgres\n", "CONFIG_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{Path: writeConfig(t, tt.body), Getenv: noEnv})
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(LoadOptions{Path: missing, Getenv: noEnv})
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")

	cfg, err := Load(LoadOptions{
		Path:     missing,
		Optional: true,
		Getenv:   func(string) string { return "postgres://env/chirpyard" },
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/chirpyard", cfg.DatabaseURL)
}

func TestConfig_Validate(t *testing.T) {
	valid := Default()
	valid.DatabaseURL = "postgres://db/chirpyard"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"store", func(c *Config) { c.Store = "sqlite" }, "store"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"cost low", func(c *Config) { c.BcryptCost = 3 }, "bcrypt_cost"},
		{"cost high", func(c *Config) { c.BcryptCost = 32 }, "bcrypt_cost"},
		{"window", func(c *Config) { c.AuthAttemptWindow = 0 }, "auth_attempt_window"},
		{"max length", func(c *Config) { c.MaxValueLength = 0 }, "max_value_length"},
		{"database url", func(c *Config) { c.DatabaseURL = "" }, "database_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])
	assert.Equal(t, false, doc["additionalProperties"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{
		"database_url", "redis_url", "store", "log_format", "log_level",
		"bcrypt_cost", "auth_attempt_window", "reserved_usernames", "max_value_length",
		"extra_profanities", "false_positives",
	} {
		assert.Contains(t, props, key)
	}
	window := props["auth_attempt_window"].(map[string]any)
	assert.Equal(t, "string", window["type"])
}

func TestValidateYAML_Empty(t *testing.T) {
	assert.NoError(t, ValidateYAML(nil))
	assert.NoError(t, ValidateYAML([]byte("# comments only\n")))
}
