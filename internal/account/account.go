// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Preference defaults applied to new accounts.
const (
	DefaultTheme   = "orange"
	DefaultLayout  = "new"
	DefaultBGMSong = 2
	DefaultPFPData = 1
)

// MaxExtraKeys bounds the open-ended preference map.
const MaxExtraKeys = 32

// Account is the stored record for one username.
type Account struct {
	// Username is the case-preserving primary key.
	Username      string
	LowerUsername string
	ID            ulid.ULID
	PasswordHash  string
	// Tokens holds SHA-256 digests of issued bearer tokens. A nil slice marks
	// a record that predates token support and has not been migrated yet.
	Tokens      []string
	Level       int
	Banned      bool
	Email       string
	LastIP      *string
	Created     time.Time
	Preferences Preferences
}

// Preferences are the client-writable settings of an account.
type Preferences struct {
	UnreadInbox bool           `json:"unread_inbox"`
	Theme       string         `json:"theme"`
	Mode        bool           `json:"mode"`
	SFX         bool           `json:"sfx"`
	Debug       bool           `json:"debug"`
	BGM         bool           `json:"bgm"`
	BGMSong     int            `json:"bgm_song"`
	Layout      string         `json:"layout"`
	PFPData     int            `json:"pfp_data"`
	Quote       string         `json:"quote"`
	Online      bool           `json:"online"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// DefaultPreferences returns the preferences given to a new account.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:   DefaultTheme,
		Mode:    true,
		SFX:     true,
		BGM:     true,
		BGMSong: DefaultBGMSong,
		Layout:  DefaultLayout,
		PFPData: DefaultPFPData,
	}
}

// NewAccount builds a fresh record with default preferences. The caller is
// responsible for validating username and hashing the password.
func NewAccount(username, passwordHash string) *Account {
	return &Account{
		Username:      username,
		LowerUsername: strings.ToLower(username),
		ID:            ulid.Make(),
		PasswordHash:  passwordHash,
		Tokens:        []string{},
		Created:       time.Now().UTC(),
		Preferences:   DefaultPreferences(),
	}
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	if a.Tokens != nil {
		c.Tokens = slices.Clone(a.Tokens)
	}
	if a.LastIP != nil {
		ip := *a.LastIP
		c.LastIP = &ip
	}
	if a.Preferences.Extra != nil {
		c.Preferences.Extra = maps.Clone(a.Preferences.Extra)
	}
	return &c
}

// Document keys. These are the names used by View and by settings updates.
const (
	KeyAlias         = "_id"
	KeyUsername      = "username"
	KeyLowerUsername = "lower_username"
	KeyID            = "id"
	KeyPasswordHash  = "password_hash"
	KeyTokens        = "tokens"
	KeyLevel         = "level"
	KeyBanned        = "banned"
	KeyEmail         = "email"
	KeyLastIP        = "last_ip"
	KeyCreated       = "created"
	KeyUnreadInbox   = "unread_inbox"
	KeyTheme         = "theme"
	KeyMode          = "mode"
	KeySFX           = "sfx"
	KeyDebug         = "debug"
	KeyBGM           = "bgm"
	KeyBGMSong       = "bgm_song"
	KeyLayout        = "layout"
	KeyPFPData       = "pfp_data"
	KeyQuote         = "quote"
	KeyOnline        = "online"
	KeyExtra         = "extra"
)

// Document flattens a into the mapping projected by View. The _id alias
// carries the primary key.
func (a *Account) Document() map[string]any {
	var lastIP any
	if a.LastIP != nil {
		lastIP = *a.LastIP
	}
	tokens := a.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	p := a.Preferences
	doc := map[string]any{
		KeyAlias:         a.Username,
		KeyUsername:      a.Username,
		KeyLowerUsername: a.LowerUsername,
		KeyID:            a.ID.String(),
		KeyPasswordHash:  a.PasswordHash,
		KeyTokens:        slices.Clone(tokens),
		KeyLevel:         a.Level,
		KeyBanned:        a.Banned,
		KeyEmail:         a.Email,
		KeyLastIP:        lastIP,
		KeyCreated:       a.Created,
		KeyUnreadInbox:   p.UnreadInbox,
		KeyTheme:         p.Theme,
		KeyMode:          p.Mode,
		KeySFX:           p.SFX,
		KeyDebug:         p.Debug,
		KeyBGM:           p.BGM,
		KeyBGMSong:       p.BGMSong,
		KeyLayout:        p.Layout,
		KeyPFPData:       p.PFPData,
		KeyQuote:         p.Quote,
		KeyOnline:        p.Online,
	}
	if len(p.Extra) > 0 {
		doc[KeyExtra] = maps.Clone(p.Extra)
	}
	return doc
}
