// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package memstore keeps account, chat, post and netlog records in memory.
// It backs tests and the CLI's memory store mode.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/chirpyard/chirpyard/internal/account"
)

// Store holds every collection behind one lock.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
	chats    map[string]*account.Chat
	posts    map[string]*account.Post
	netlog   map[string]*account.NetlogEntry
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
		chats:    make(map[string]*account.Chat),
		posts:    make(map[string]*account.Post),
		netlog:   make(map[string]*account.NetlogEntry),
	}
}

// Repositories returns the collaborators a Manager needs.
func (s *Store) Repositories() account.Repositories {
	return account.Repositories{
		Accounts: s.Accounts(),
		Chats:    s.Chats(),
		Posts:    s.Posts(),
		Netlog:   s.Netlog(),
	}
}

// Accounts returns the account repository view of s.
func (s *Store) Accounts() *AccountRepository { return &AccountRepository{s: s} }

// Chats returns the chat repository view of s.
func (s *Store) Chats() *ChatRepository { return &ChatRepository{s: s} }

// Posts returns the post repository view of s.
func (s *Store) Posts() *PostRepository { return &PostRepository{s: s} }

// Netlog returns the netlog repository view of s.
func (s *Store) Netlog() *NetlogRepository { return &NetlogRepository{s: s} }

// AccountRepository implements account.AccountRepository.
type AccountRepository struct{ s *Store }

var _ account.AccountRepository = (*AccountRepository)(nil)

// Get loads an account by exact key.
func (r *AccountRepository) Get(_ context.Context, username string) (*account.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	acct, ok := r.s.accounts[username]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(account.ErrNotFound)
	}
	return acct.Clone(), nil
}

// FindByLowerUsername returns keys whose lowercase index equals lower, sorted.
func (r *AccountRepository) FindByLowerUsername(_ context.Context, lower string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var keys []string
	for key, acct := range r.s.accounts {
		if acct.LowerUsername == lower {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Create stores a new account, enforcing key and lowercase-index uniqueness.
func (r *AccountRepository) Create(_ context.Context, acct *account.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lower := strings.ToLower(acct.Username)
	for key, existing := range r.s.accounts {
		if key == acct.Username || existing.LowerUsername == lower {
			return oops.Code("ACCOUNT_EXISTS").With("username", acct.Username).Wrap(account.ErrAlreadyExists)
		}
	}
	r.s.accounts[acct.Username] = acct.Clone()
	return nil
}

// Update replaces an existing account.
func (r *AccountRepository) Update(_ context.Context, acct *account.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[acct.Username]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", acct.Username).Wrap(account.ErrNotFound)
	}
	r.s.accounts[acct.Username] = acct.Clone()
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(_ context.Context, username string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[username]; !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(account.ErrNotFound)
	}
	delete(r.s.accounts, username)
	return nil
}

// ChatRepository implements account.ChatRepository.
type ChatRepository struct{ s *Store }

var _ account.ChatRepository = (*ChatRepository)(nil)

// Create stores a new chat.
func (r *ChatRepository) Create(_ context.Context, chat *account.Chat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.chats[chat.ID]; ok {
		return oops.Code("CHAT_EXISTS").With("chat_id", chat.ID).Wrap(account.ErrAlreadyExists)
	}
	r.s.chats[chat.ID] = cloneChat(chat)
	return nil
}

// Get loads a chat by ID.
func (r *ChatRepository) Get(_ context.Context, id string) (*account.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	chat, ok := r.s.chats[id]
	if !ok {
		return nil, oops.Code("CHAT_NOT_FOUND").With("chat_id", id).Wrap(account.ErrNotFound)
	}
	return cloneChat(chat), nil
}

// DeleteByOwner removes every chat owned by owner.
func (r *ChatRepository) DeleteByOwner(_ context.Context, owner string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, chat := range r.s.chats {
		if chat.Owner == owner {
			delete(r.s.chats, id)
			n++
		}
	}
	return n, nil
}

// FindByMember returns chats listing member, ordered by ID.
func (r *ChatRepository) FindByMember(_ context.Context, member string) ([]*account.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*account.Chat
	for _, chat := range r.s.chats {
		if slices.Contains(chat.Members, member) {
			out = append(out, cloneChat(chat))
		}
	}
	slices.SortFunc(out, func(a, b *account.Chat) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Update replaces an existing chat.
func (r *ChatRepository) Update(_ context.Context, chat *account.Chat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.chats[chat.ID]; !ok {
		return oops.Code("CHAT_NOT_FOUND").With("chat_id", chat.ID).Wrap(account.ErrNotFound)
	}
	r.s.chats[chat.ID] = cloneChat(chat)
	return nil
}

// PostRepository implements account.PostRepository.
type PostRepository struct{ s *Store }

var _ account.PostRepository = (*PostRepository)(nil)

// Create stores a new post.
func (r *PostRepository) Create(_ context.Context, post *account.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[post.ID]; ok {
		return oops.Code("POST_EXISTS").With("post_id", post.ID).Wrap(account.ErrAlreadyExists)
	}
	p := *post
	r.s.posts[post.ID] = &p
	return nil
}

// CountByAuthor returns how many posts author has.
func (r *PostRepository) CountByAuthor(_ context.Context, author string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, p := range r.s.posts {
		if p.Author == author {
			n++
		}
	}
	return n, nil
}

// DeleteByAuthor removes every post by author.
func (r *PostRepository) DeleteByAuthor(_ context.Context, author string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, p := range r.s.posts {
		if p.Author == author {
			delete(r.s.posts, id)
			n++
		}
	}
	return n, nil
}

// NetlogRepository implements account.NetlogRepository.
type NetlogRepository struct{ s *Store }

var _ account.NetlogRepository = (*NetlogRepository)(nil)

// Put creates or replaces the entry for entry.IP.
func (r *NetlogRepository) Put(_ context.Context, entry *account.NetlogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.netlog[entry.IP] = cloneNetlog(entry)
	return nil
}

// Get loads the entry for ip.
func (r *NetlogRepository) Get(_ context.Context, ip string) (*account.NetlogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entry, ok := r.s.netlog[ip]
	if !ok {
		return nil, oops.Code("NETLOG_NOT_FOUND").With("ip", ip).Wrap(account.ErrNotFound)
	}
	return cloneNetlog(entry), nil
}

// FindByUser returns entries listing user, ordered by IP.
func (r *NetlogRepository) FindByUser(_ context.Context, user string) ([]*account.NetlogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*account.NetlogEntry
	for _, entry := range r.s.netlog {
		if slices.Contains(entry.Users, user) {
			out = append(out, cloneNetlog(entry))
		}
	}
	slices.SortFunc(out, func(a, b *account.NetlogEntry) int { return cmp.Compare(a.IP, b.IP) })
	return out, nil
}

// Update replaces an existing entry.
func (r *NetlogRepository) Update(_ context.Context, entry *account.NetlogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.netlog[entry.IP]; !ok {
		return oops.Code("NETLOG_NOT_FOUND").With("ip", entry.IP).Wrap(account.ErrNotFound)
	}
	r.s.netlog[entry.IP] = cloneNetlog(entry)
	return nil
}

// Delete removes the entry for ip.
func (r *NetlogRepository) Delete(_ context.Context, ip string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.netlog[ip]; !ok {
		return oops.Code("NETLOG_NOT_FOUND").With("ip", ip).Wrap(account.ErrNotFound)
	}
	delete(r.s.netlog, ip)
	return nil
}

func cloneChat(c *account.Chat) *account.Chat {
	out := *c
	out.Members = slices.Clone(c.Members)
	return &out
}

func cloneNetlog(e *account.NetlogEntry) *account.NetlogEntry {
	out := *e
	out.Users = slices.Clone(e.Users)
	return &out
}
