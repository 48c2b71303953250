// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/samber/oops"

	"github.com/chirpyard/chirpyard/pkg/errutil"
)

// Cascade domains, used as log and metric labels.
const (
	DomainChats  = "chats"
	DomainPosts  = "posts"
	DomainNetlog = "netlog"
)

// CascadeReport records what Delete cleaned up after removing the account.
type CascadeReport struct {
	ChatsDeleted  int
	ChatsDetached int
	PostsDeleted  int
	NetlogUpdated int
	NetlogDeleted int
	// Errors holds every failed cleanup step. They never change the Deleted outcome.
	Errors []error
}

// Err joins the recorded failures, or returns nil.
func (r *CascadeReport) Err() error {
	return errors.Join(r.Errors...)
}

// Delete removes the account and its footprint across chats, posts and
// netlog entries. Cleanup is best-effort and the report lists what failed.
func (m *Manager) Delete(ctx context.Context, username string) (report *CascadeReport, outcome Outcome, err error) {
	ctx, end := m.begin(ctx, "delete", username)
	defer func() { end(outcome, err) }()

	acct, outcome, err := m.load(ctx, "delete", username)
	if outcome != 0 {
		return nil, outcome, err
	}
	if err := m.accounts.Delete(ctx, acct.Username); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotFound, nil
		}
		return nil, IOError, ioError("delete", username, "delete account", err)
	}
	m.logger.InfoContext(ctx, "account deleted", "username", acct.Username, "id", acct.ID.String())

	report = &CascadeReport{}
	m.cascadeChats(ctx, acct.Username, report)
	m.cascadePosts(ctx, acct.Username, report)
	m.cascadeNetlog(ctx, acct.Username, report)

	if len(report.Errors) > 0 {
		m.logger.WarnContext(ctx, "account deleted with incomplete cleanup",
			"username", acct.Username,
			"failures", len(report.Errors))
	}
	return report, Deleted, nil
}

func (m *Manager) cascadeFailed(ctx context.Context, report *CascadeReport, domain, step, username string, err error) {
	wrapped := wrapCause(oops.Code("ACCOUNT_CASCADE_FAILED").
		With("domain", domain).
		With("step", step).
		With("username", username), err)
	report.Errors = append(report.Errors, wrapped)
	CascadeFailures.WithLabelValues(domain).Inc()
	errutil.LogErrorContext(ctx, m.logger, slog.LevelWarn, "account cleanup step failed", wrapped)
}

func (m *Manager) cascadeChats(ctx context.Context, username string, report *CascadeReport) {
	n, err := m.chats.DeleteByOwner(ctx, username)
	if err != nil {
		m.cascadeFailed(ctx, report, DomainChats, "delete owned chats", username, err)
	}
	report.ChatsDeleted = n

	chats, err := m.chats.FindByMember(ctx, username)
	if err != nil {
		m.cascadeFailed(ctx, report, DomainChats, "find memberships", username, err)
		return
	}
	for _, chat := range chats {
		chat.Members = slices.DeleteFunc(chat.Members, func(member string) bool { return member == username })
		if err := m.chats.Update(ctx, chat); err != nil {
			m.cascadeFailed(ctx, report, DomainChats, "detach member from "+chat.ID, username, err)
			continue
		}
		report.ChatsDetached++
	}
}

func (m *Manager) cascadePosts(ctx context.Context, username string, report *CascadeReport) {
	n, err := m.posts.DeleteByAuthor(ctx, username)
	if err != nil {
		m.cascadeFailed(ctx, report, DomainPosts, "delete authored posts", username, err)
	}
	report.PostsDeleted = n
}

func (m *Manager) cascadeNetlog(ctx context.Context, username string, report *CascadeReport) {
	entries, err := m.netlog.FindByUser(ctx, username)
	if err != nil {
		m.cascadeFailed(ctx, report, DomainNetlog, "find entries", username, err)
		return
	}
	for _, entry := range entries {
		entry.Users = slices.DeleteFunc(entry.Users, func(u string) bool { return u == username })
		if len(entry.Users) == 0 {
			if err := m.netlog.Delete(ctx, entry.IP); err != nil {
				m.cascadeFailed(ctx, report, DomainNetlog, "delete entry "+entry.IP, username, err)
				continue
			}
			report.NetlogDeleted++
			continue
		}
		if entry.LastUser == username {
			entry.LastUser = entry.Users[len(entry.Users)-1]
		}
		if err := m.netlog.Update(ctx, entry); err != nil {
			m.cascadeFailed(ctx, report, DomainNetlog, "update entry "+entry.IP, username, err)
			continue
		}
		report.NetlogUpdated++
	}
}
