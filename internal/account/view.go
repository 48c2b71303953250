// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import "context"

// Keys removed from every view.
var alwaysHidden = []string{KeyAlias, KeyLowerUsername}

// Keys removed from public views.
var sensitiveKeys = []string{
	KeyUnreadInbox,
	KeyTheme,
	KeyMode,
	KeySFX,
	KeyDebug,
	KeyBGM,
	KeyBGMSong,
	KeyLayout,
	KeyEmail,
	KeyPasswordHash,
	KeyTokens,
	KeyLastIP,
}

// Keys removed from the owner's own client view.
var clientHiddenKeys = []string{KeyPasswordHash, KeyEmail, KeyTokens, KeyLastIP}

// View returns a redacted document for username.
//
// omitSensitive produces the public projection. isClient produces the
// lighter projection sent to the account owner's client, which keeps the
// preference fields. Both may be combined.
func (m *Manager) View(ctx context.Context, username string, omitSensitive, isClient bool) (doc map[string]any, outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "view", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.load(ctx, "view", username)
	if outcome != 0 {
		return nil, outcome, err
	}
	return Project(acct, omitSensitive, isClient), Exists, nil
}

// Project applies the View redaction rules to acct.
func Project(acct *Account, omitSensitive, isClient bool) map[string]any {
	doc := acct.Document()
	drop(doc, alwaysHidden)
	if omitSensitive {
		drop(doc, sensitiveKeys)
	}
	if isClient {
		drop(doc, clientHiddenKeys)
	}
	return doc
}

func drop(doc map[string]any, keys []string) {
	for _, k := range keys {
		delete(doc, k)
	}
}
