// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"context"
	"time"
)

// Chat is a group chat owned by one account.
type Chat struct {
	ID       string
	Nickname string
	Owner    string
	Members  []string
}

// Post is a message authored by one account.
type Post struct {
	ID      string
	Origin  string
	Author  string
	Content string
	Created time.Time
}

// NetlogEntry aggregates the accounts seen from one IP address.
type NetlogEntry struct {
	IP       string
	Users    []string
	LastUser string
}

// AccountRepository manages account persistence.
// Implementations return errors wrapping ErrNotFound and ErrAlreadyExists.
type AccountRepository interface {
	// Get loads the account whose primary key equals username exactly.
	Get(ctx context.Context, username string) (*Account, error)

	// FindByLowerUsername returns the primary keys of every account whose
	// lowercase index equals lower.
	FindByLowerUsername(ctx context.Context, lower string) ([]string, error)

	// Create stores a new account. Returns ErrAlreadyExists when the key or
	// the lowercase index collides.
	Create(ctx context.Context, acct *Account) error

	// Update replaces an existing account.
	Update(ctx context.Context, acct *Account) error

	// Delete removes an account by primary key.
	Delete(ctx context.Context, username string) error
}

// ChatRepository is the slice of chat storage needed by account deletion.
type ChatRepository interface {
	// DeleteByOwner removes every chat owned by owner and returns the count.
	DeleteByOwner(ctx context.Context, owner string) (int, error)

	// FindByMember returns every chat listing member.
	FindByMember(ctx context.Context, member string) ([]*Chat, error)

	// Update replaces an existing chat.
	Update(ctx context.Context, chat *Chat) error
}

// PostRepository is the slice of post storage needed by account deletion.
type PostRepository interface {
	// DeleteByAuthor removes every post by author and returns the count.
	DeleteByAuthor(ctx context.Context, author string) (int, error)
}

// NetlogRepository is the slice of IP history storage needed by account deletion.
type NetlogRepository interface {
	// FindByUser returns every entry listing user.
	FindByUser(ctx context.Context, user string) ([]*NetlogEntry, error)

	// Update replaces an existing entry.
	Update(ctx context.Context, entry *NetlogEntry) error

	// Delete removes the entry for ip.
	Delete(ctx context.Context, ip string) error
}

// Repositories bundles the storage collaborators used by a Manager.
type Repositories struct {
	Accounts AccountRepository
	Chats    ChatRepository
	Posts    PostRepository
	Netlog   NetlogRepository
}

// ContentPolicy decides which user-supplied text may be stored.
type ContentPolicy interface {
	Censor(text string) string
	TextAllowed(text string) bool
	ValidateUsername(username string) error
	ValidateEmail(email string) error
}

// AttemptLimiter throttles authentication attempts per key.
type AttemptLimiter interface {
	// Allow records an attempt for key. It returns false and the remaining
	// wait when the key is still inside its window.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}
