// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package contentpolicy decides which user-supplied text may be stored.
//
// Post text is limited to printable ASCII: letters, digits, punctuation and
// the space character. Usernames use the same set minus the space and the
// characters " ' * ; and must not be profane or match a reserved pattern.
//
// Profanity is matched per word: a word is a run of ASCII letters and
// digits, and it is profane only when the whole word, after leetspeak
// normalization, is a dictionary entry or an entry
// followed by a common inflection (s, es, ed, ing, y). Words that merely
// contain an entry ("assessment", "Essex") are left alone.
package contentpolicy

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// MaxUsernameLength bounds usernames in runes.
const MaxUsernameLength = 20

const (
	letters     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits      = "0123456789"
	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

	usernameExcluded = `"'*;`
)

// Config tunes a Policy.
type Config struct {
	// ReservedUsernames are glob patterns matched against the lowercased
	// username, e.g. "admin*" or "server".
	ReservedUsernames []string
	// ExtraProfanities extends the built-in dictionary.
	ExtraProfanities []string
	// FalsePositives are words that must never be treated as profane.
	FalsePositives []string
}

// Policy implements the account content rules. It is safe for concurrent use.
type Policy struct {
	postChars     [utf8.RuneSelf]bool
	usernameChars [utf8.RuneSelf]bool
	detector      *goaway.ProfanityDetector
	entries       map[string]struct{}
	anywhere      []string
	reserved      []glob.Glob
	reservedSrc   []string
}

// New builds a Policy from cfg.
func New(cfg Config) (*Policy, error) {
	p := &Policy{}
	for _, set := range []string{letters, digits, punctuation, " "} {
		for _, c := range set {
			p.postChars[c] = true
		}
	}
	p.usernameChars = p.postChars
	p.usernameChars[' '] = false
	for _, c := range usernameExcluded {
		p.usernameChars[c] = false
	}

	profanities := append(append([]string{}, goaway.DefaultProfanities...), cfg.ExtraProfanities...)
	falsePositives := append(append([]string{}, goaway.DefaultFalsePositives...), cfg.FalsePositives...)
	for i := range profanities {
		profanities[i] = strings.ToLower(profanities[i])
	}
	for i := range falsePositives {
		falsePositives[i] = strings.ToLower(falsePositives[i])
	}
	p.detector = goaway.NewProfanityDetector().
		WithCustomDictionary(profanities, falsePositives, goaway.DefaultFalseNegatives)
	p.entries = make(map[string]struct{}, len(profanities))
	for _, w := range profanities {
		p.entries[w] = struct{}{}
	}
	p.anywhere = goaway.DefaultFalseNegatives

	for _, pattern := range cfg.ReservedUsernames {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, oops.Code("POLICY_INVALID_PATTERN").
				With("pattern", pattern).
				Wrap(err)
		}
		p.reserved = append(p.reserved, g)
		p.reservedSrc = append(p.reservedSrc, pattern)
	}
	return p, nil
}

// Censor replaces every profane word in text with asterisks of the same
// length. Everything else is returned unchanged.
func (p *Policy) Censor(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	eachSegment(text, func(seg string, word bool) {
		if word && p.profaneWord(seg) {
			b.WriteString(strings.Repeat("*", utf8.RuneCountInString(seg)))
			return
		}
		b.WriteString(seg)
	})
	return b.String()
}

// IsProfane reports whether any word of text is profane.
func (p *Policy) IsProfane(text string) bool {
	profane := false
	eachSegment(text, func(seg string, word bool) {
		if !profane && word && p.profaneWord(seg) {
			profane = true
		}
	})
	return profane
}

// inflections are the endings accepted after a dictionary entry.
var inflections = []string{"s", "es", "ed", "ing", "y"}

// profaneWord reports whether word is a dictionary entry, possibly inflected.
// go-away matches substrings and honours false positives, so it gates the
// check; the normalized word must then equal an entry. go-away's false
// negatives ("asshole") count wherever they appear.
func (p *Policy) profaneWord(word string) bool {
	match := p.detector.ExtractProfanity(word)
	if match == "" {
		return false
	}
	if slices.Contains(p.anywhere, match) {
		return true
	}
	norm := normalize(word)
	if _, ok := p.entries[norm]; ok {
		return true
	}
	for _, suffix := range inflections {
		if stem, ok := strings.CutSuffix(norm, suffix); ok {
			if _, ok := p.entries[stem]; ok {
				return true
			}
		}
	}
	return false
}

// normalize lowercases word and undoes go-away's leetspeak substitutions.
func normalize(word string) string {
	return strings.Map(func(r rune) rune {
		if to, ok := goaway.DefaultCharacterReplacements[r]; ok && to != ' ' {
			return to
		}
		return unicode.ToLower(r)
	}, word)
}

// TextAllowed reports whether every character of text is in the post set.
func (p *Policy) TextAllowed(text string) bool {
	return allIn(text, &p.postChars)
}

// ValidateUsername checks a candidate username.
func (p *Policy) ValidateUsername(username string) error {
	if !utf8.ValidString(username) {
		return oops.Code("POLICY_INVALID_USERNAME").Errorf("username is not valid UTF-8")
	}
	n := utf8.RuneCountInString(username)
	if n == 0 {
		return oops.Code("POLICY_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if n > MaxUsernameLength {
		return oops.Code("POLICY_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !allIn(username, &p.usernameChars) {
		return oops.Code("POLICY_INVALID_USERNAME").
			With("username", username).
			Errorf("username contains illegal characters")
	}
	if p.IsProfane(username) {
		return oops.Code("POLICY_INVALID_USERNAME").
			With("username", username).
			Errorf("username contains profanity")
	}
	lower := strings.ToLower(username)
	for i, g := range p.reserved {
		if g.Match(lower) {
			return oops.Code("POLICY_RESERVED_USERNAME").
				With("username", username).
				With("pattern", p.reservedSrc[i]).
				Errorf("username is reserved")
		}
	}
	return nil
}

// ValidateEmail accepts the empty string (cleared address) or a value with
// exactly one @ and a non-empty local part.
func (p *Policy) ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" || strings.Count(email, "@") != 1 {
		return oops.Code("POLICY_MALFORMED_EMAIL").With("email", email).Errorf("email is malformed")
	}
	if !allIn(email, &p.usernameChars) {
		return oops.Code("POLICY_MALFORMED_EMAIL").With("email", email).Errorf("email contains illegal characters")
	}
	return nil
}

// eachSegment splits s into alternating runs of word and non-word
// characters and calls fn for each run in order.
func eachSegment(s string, fn func(seg string, word bool)) {
	start, inWord := 0, false
	for i, r := range s {
		w := isWordRune(r)
		if i > start && w != inWord {
			fn(s[start:i], inWord)
			start = i
		}
		inWord = w
	}
	if start < len(s) {
		fn(s[start:], inWord)
	}
}

func isWordRune(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

func allIn(s string, set *[utf8.RuneSelf]bool) bool {
	for _, r := range s {
		if r >= utf8.RuneSelf || !set[r] {
			return false
		}
	}
	return true
}
