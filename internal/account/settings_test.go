// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chirpyard/chirpyard/internal/account"
	"github.com/chirpyard/chirpyard/internal/account/memstore"
)

func TestManager_UpdateSettings(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*account.Manager, *memstore.Store) {
		m, store := newMemManager(t)
		mustCreate(t, m, "Alice", "p@ss1")
		return m, store
	}
	load := func(t *testing.T, store *memstore.Store) *account.Account {
		acct, err := store.Accounts().Get(ctx, "Alice")
		require.NoError(t, err)
		return acct
	}

	t.Run("applies preference fields", func(t *testing.T) {
		m, store := setup(t)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{
			"theme":        "blue",
			"mode":         false,
			"sfx":          false,
			"debug":        true,
			"bgm":          false,
			"bgm_song":     float64(5),
			"layout":       "old",
			"pfp_data":     int64(7),
			"quote":        "good vibes only",
			"unread_inbox": true,
			"online":       true,
		}, false)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)

		p := load(t, store).Preferences
		assert.Equal(t, "blue", p.Theme)
		assert.False(t, p.Mode)
		assert.False(t, p.SFX)
		assert.True(t, p.Debug)
		assert.False(t, p.BGM)
		assert.Equal(t, 5, p.BGMSong)
		assert.Equal(t, "old", p.Layout)
		assert.Equal(t, 7, p.PFPData)
		assert.Equal(t, "good vibes only", p.Quote)
		assert.True(t, p.UnreadInbox)
		assert.True(t, p.Online)
	})

	t.Run("protected fields need force", func(t *testing.T) {
		m, store := setup(t)
		changes := map[string]any{"level": 2, "banned": true, "theme": "blue"}

		outcome, err := m.UpdateSettings(ctx, "Alice", changes, false)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		acct := load(t, store)
		assert.Zero(t, acct.Level)
		assert.False(t, acct.Banned)
		assert.Equal(t, "blue", acct.Preferences.Theme)

		outcome, err = m.UpdateSettings(ctx, "Alice", changes, true)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		acct = load(t, store)
		assert.Equal(t, 2, acct.Level)
		assert.True(t, acct.Banned)
	})

	t.Run("forced email and last_ip", func(t *testing.T) {
		m, store := setup(t)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{
			"email":   "alice@example.com",
			"last_ip": "10.1.2.3",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		acct := load(t, store)
		assert.Equal(t, "alice@example.com", acct.Email)
		require.NotNil(t, acct.LastIP)
		assert.Equal(t, "10.1.2.3", *acct.LastIP)

		outcome, err = m.UpdateSettings(ctx, "Alice", map[string]any{"last_ip": ""}, true)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		assert.Nil(t, load(t, store).LastIP)

		outcome, err = m.UpdateSettings(ctx, "Alice", map[string]any{"email": "not-an-email"}, true)
		assert.Equal(t, account.InvalidInput, outcome)
		assert.ErrorIs(t, err, account.ErrInvalidInput)
		assert.Equal(t, "alice@example.com", load(t, store).Email)
	})

	t.Run("internal fields are never written", func(t *testing.T) {
		m, store := setup(t)
		before := load(t, store)

		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{
			"password_hash":  "x",
			"tokens":         "x",
			"id":             "x",
			"lower_username": "x",
			"created":        "x",
			"_id":            "x",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)

		after := load(t, store)
		assert.Equal(t, before.PasswordHash, after.PasswordHash)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, before.LowerUsername, after.LowerUsername)
		assert.Equal(t, before.Tokens, after.Tokens)
		assert.True(t, before.Created.Equal(after.Created))
	})

	t.Run("unknown keys are skipped", func(t *testing.T) {
		m, store := setup(t)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{"nonsense": 1, "quote": "hi"}, false)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		assert.Equal(t, "hi", load(t, store).Preferences.Quote)
	})

	t.Run("censors text values", func(t *testing.T) {
		m, store := setup(t)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{"quote": "what the fuck"}, false)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		quote := load(t, store).Preferences.Quote
		assert.NotContains(t, quote, "fuck")
		assert.Contains(t, quote, "*")
	})

	rejected := []struct {
		name  string
		key   string
		value any
	}{
		{"text over the length bound", "quote", strings.Repeat("a", account.DefaultMaxValueLength+1)},
		{"newline", "quote", "line\nbreak"},
		{"non-ascii", "theme", "blüe"},
		{"wrong type for text", "theme", 42},
		{"wrong type for bool", "mode", "yes"},
		{"fractional integer", "bgm_song", 2.5},
		{"unsupported type", "quote", []string{"a"}},
		{"nil value", "quote", nil},
	}
	for _, tt := range rejected {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			m, store := setup(t)
			outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{tt.key: tt.value, "layout": "old"}, false)
			assert.Equal(t, account.InvalidInput, outcome)
			assert.ErrorIs(t, err, account.ErrInvalidInput)

			acct := load(t, store)
			assert.Equal(t, account.DefaultPreferences(), acct.Preferences, "nothing is persisted")
		})
	}

	t.Run("accepts text at the length bound", func(t *testing.T) {
		m, store := setup(t)
		quote := strings.Repeat("a", account.DefaultMaxValueLength)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{"quote": quote}, false)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		assert.Equal(t, quote, load(t, store).Preferences.Quote)
	})

	t.Run("negative level is rejected", func(t *testing.T) {
		m, _ := setup(t)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{"level": -1}, true)
		assert.Equal(t, account.InvalidInput, outcome)
		require.Error(t, err)
	})

	t.Run("extra preferences", func(t *testing.T) {
		m, store := setup(t)
		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{
			"extra": map[string]any{"color": "teal", "volume": float64(3), "ratio": 0.5, "beta": true},
		}, false)
		require.NoError(t, err)
		assert.Equal(t, account.Updated, outcome)
		assert.Equal(t, map[string]any{"color": "teal", "volume": 3, "ratio": 0.5, "beta": true},
			load(t, store).Preferences.Extra)

		tooMany := make(map[string]any, account.MaxExtraKeys+1)
		for i := range account.MaxExtraKeys + 1 {
			tooMany[strings.Repeat("k", i+1)] = true
		}
		outcome, err = m.UpdateSettings(ctx, "Alice", map[string]any{"extra": tooMany}, false)
		assert.Equal(t, account.InvalidInput, outcome)
		require.Error(t, err)

		outcome, _ = m.UpdateSettings(ctx, "Alice", map[string]any{"extra": map[string]any{"nested": map[string]any{}}}, false)
		assert.Equal(t, account.InvalidInput, outcome)

		outcome, _ = m.UpdateSettings(ctx, "Alice", map[string]any{"extra": map[string]any{" ": "x"}}, false)
		assert.Equal(t, account.InvalidInput, outcome)
	})

	t.Run("unknown account", func(t *testing.T) {
		m, _ := newMemManager(t)
		outcome, err := m.UpdateSettings(ctx, "ghost", map[string]any{"theme": "blue"}, false)
		require.NoError(t, err)
		assert.Equal(t, account.NotFound, outcome)
	})

	t.Run("write failure reports io error", func(t *testing.T) {
		accounts := new(mockAccountRepository)
		repos := memstore.New().Repositories()
		repos.Accounts = accounts
		m := newManager(t, repos)

		accounts.On("Get", mock.Anything, "Alice").Return(account.NewAccount("Alice", "hash"), nil)
		accounts.On("Update", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		outcome, err := m.UpdateSettings(ctx, "Alice", map[string]any{"theme": "blue"}, false)
		assert.Equal(t, account.IOError, outcome)
		require.Error(t, err)
	})

	t.Run("custom max value length", func(t *testing.T) {
		m, _ := newMemManager(t, account.WithMaxValueLength(4))
		mustCreate(t, m, "Alice", "p@ss1")
		outcome, _ := m.UpdateSettings(ctx, "Alice", map[string]any{"quote": "hello"}, false)
		assert.Equal(t, account.InvalidInput, outcome)
	})
}
