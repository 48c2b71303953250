// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

type valueKind int

const (
	kindBool valueKind = iota
	kindInt
	kindText
	kindObject
)

func (k valueKind) String() string {
	switch k {
	case kindBool:
		return "boolean"
	case kindInt:
		return "integer"
	case kindText:
		return "text"
	default:
		return "object"
	}
}

// access controls who may write a settings key.
type access int

const (
	writable access = iota
	// protected keys need force.
	protected
	// internal keys are never written through UpdateSettings.
	internal
)

type settingRule struct {
	kind   valueKind
	access access
	// censor runs text values through the profanity filter before storing.
	censor bool
	apply  func(a *Account, v any)
}

var settingRules = map[string]settingRule{
	KeyUnreadInbox: {kind: kindBool, apply: func(a *Account, v any) { a.Preferences.UnreadInbox = v.(bool) }},
	KeyTheme:       {kind: kindText, censor: true, apply: func(a *Account, v any) { a.Preferences.Theme = v.(string) }},
	KeyMode:        {kind: kindBool, apply: func(a *Account, v any) { a.Preferences.Mode = v.(bool) }},
	KeySFX:         {kind: kindBool, apply: func(a *Account, v any) { a.Preferences.SFX = v.(bool) }},
	KeyDebug:       {kind: kindBool, apply: func(a *Account, v any) { a.Preferences.Debug = v.(bool) }},
	KeyBGM:         {kind: kindBool, apply: func(a *Account, v any) { a.Preferences.BGM = v.(bool) }},
	KeyBGMSong:     {kind: kindInt, apply: func(a *Account, v any) { a.Preferences.BGMSong = v.(int) }},
	KeyLayout:      {kind: kindText, censor: true, apply: func(a *Account, v any) { a.Preferences.Layout = v.(string) }},
	KeyPFPData:     {kind: kindInt, apply: func(a *Account, v any) { a.Preferences.PFPData = v.(int) }},
	KeyQuote:       {kind: kindText, censor: true, apply: func(a *Account, v any) { a.Preferences.Quote = v.(string) }},
	KeyOnline:      {kind: kindBool, apply: func(a *Account, v any) { a.Preferences.Online = v.(bool) }},
	KeyExtra:       {kind: kindObject, apply: func(a *Account, v any) { a.Preferences.Extra = v.(map[string]any) }},

	KeyLevel:  {kind: kindInt, access: protected, apply: func(a *Account, v any) { a.Level = v.(int) }},
	KeyBanned: {kind: kindBool, access: protected, apply: func(a *Account, v any) { a.Banned = v.(bool) }},
	KeyEmail:  {kind: kindText, access: protected, apply: func(a *Account, v any) { a.Email = v.(string) }},
	KeyLastIP: {kind: kindText, access: protected, apply: func(a *Account, v any) {
		if ip := v.(string); ip != "" {
			a.LastIP = &ip
			return
		}
		a.LastIP = nil
	}},

	KeyAlias:         {access: internal},
	KeyUsername:      {access: internal},
	KeyLowerUsername: {access: internal},
	KeyID:            {access: internal},
	KeyCreated:       {access: internal},
	KeyPasswordHash:  {access: internal},
	KeyTokens:        {access: internal},
}

// UpdateSettings applies changes to the account's settings.
//
// Unknown keys and keys the caller may not write are skipped and logged.
// Protected keys (level, banned, email, last_ip) are written only with
// force. Every remaining value is validated before anything is applied; if
// any fails, InvalidInput is returned and the record is left untouched.
func (m *Manager) UpdateSettings(ctx context.Context, username string, changes map[string]any, force bool) (outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "update_settings", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.loadActive(ctx, "update_settings", username)
	if outcome != 0 {
		return outcome, err
	}

	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	staged := acct.Clone()
	var errs []error
	for _, key := range keys {
		rule, known := settingRules[key]
		switch {
		case !known:
			m.logger.InfoContext(ctx, "skipping unknown setting", "username", username, "key", key)
			continue
		case rule.access == internal:
			m.logger.WarnContext(ctx, "blocked write to internal key", "username", username, "key", key)
			continue
		case rule.access == protected && !force:
			m.logger.WarnContext(ctx, "blocked write to protected key", "username", username, "key", key)
			continue
		}

		value, err := m.normalizeSetting(key, rule, changes[key])
		if err != nil {
			m.logger.InfoContext(ctx, "setting failed validation", "username", username, "key", key, "error", err)
			errs = append(errs, err)
			continue
		}
		rule.apply(staged, value)
	}
	if len(errs) > 0 {
		return InvalidInput, invalidInput("update_settings", errors.Join(errs...))
	}

	return m.save(ctx, "update_settings", staged)
}

func (m *Manager) normalizeSetting(key string, rule settingRule, raw any) (any, error) {
	switch rule.kind {
	case kindBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case kindInt:
		if n, ok := asInt(raw); ok {
			if key == KeyLevel && n < 0 {
				return nil, oops.Code("SETTING_OUT_OF_RANGE").With("key", key).With("value", n).
					Errorf("%s cannot be negative", key)
			}
			return n, nil
		}
	case kindText:
		if s, ok := raw.(string); ok {
			if err := m.checkText(key, s); err != nil {
				return nil, err
			}
			if key == KeyEmail {
				if err := m.policy.ValidateEmail(s); err != nil {
					return nil, err
				}
			}
			if rule.censor {
				s = m.policy.Censor(s)
			}
			return s, nil
		}
	case kindObject:
		if obj, ok := raw.(map[string]any); ok {
			return m.normalizeExtra(obj)
		}
	}
	return nil, oops.Code("SETTING_TYPE_MISMATCH").
		With("key", key).
		With("expected", rule.kind.String()).
		Errorf("%s must be %s, got %T", key, rule.kind, raw)
}

// checkText applies the post character set and length bound.
func (m *Manager) checkText(key, s string) error {
	if n := utf8.RuneCountInString(s); n > m.maxValueLength {
		return oops.Code("SETTING_TOO_LONG").
			With("key", key).
			With("length", n).
			With("max", m.maxValueLength).
			Errorf("%s exceeds %d characters", key, m.maxValueLength)
	}
	if !m.policy.TextAllowed(s) {
		return oops.Code("SETTING_ILLEGAL_CHARACTERS").
			With("key", key).
			Errorf("%s contains disallowed characters", key)
	}
	return nil
}

// normalizeExtra validates the open-ended preference map. Values must be
// scalars; text values are checked and censored like any other text setting.
func (m *Manager) normalizeExtra(obj map[string]any) (map[string]any, error) {
	if len(obj) > MaxExtraKeys {
		return nil, oops.Code("SETTING_TOO_MANY_KEYS").
			With("keys", len(obj)).
			With("max", MaxExtraKeys).
			Errorf("extra holds at most %d keys", MaxExtraKeys)
	}
	out := make(map[string]any, len(obj))
	for k, raw := range obj {
		if strings.TrimSpace(k) == "" {
			return nil, oops.Code("SETTING_INVALID_KEY").Errorf("extra keys cannot be blank")
		}
		if err := m.checkText(KeyExtra+"."+k, k); err != nil {
			return nil, err
		}
		switch v := raw.(type) {
		case bool:
			out[k] = v
		case string:
			if err := m.checkText(KeyExtra+"."+k, v); err != nil {
				return nil, err
			}
			out[k] = m.policy.Censor(v)
		default:
			if n, ok := asInt(raw); ok {
				out[k] = n
				continue
			}
			f, ok := asFloat(raw)
			if !ok {
				return nil, oops.Code("SETTING_TYPE_MISMATCH").
					With("key", KeyExtra+"."+k).
					Errorf("extra values must be text, number or boolean, got %T", raw)
			}
			out[k] = f
		}
	}
	return out, nil
}

// asInt accepts Go integer kinds and integral finite float64 values, the
// form JSON decoding produces.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case float32:
		return asFloat(float64(f))
	}
	return 0, false
}
