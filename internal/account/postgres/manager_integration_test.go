//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package postgres_test

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/chirpyard/chirpyard/internal/account"
	"github.com/chirpyard/chirpyard/internal/account/postgres"
	"github.com/chirpyard/chirpyard/internal/contentpolicy"
)

var _ = Describe("Manager on PostgreSQL", func() {
	var (
		ctx     context.Context
		manager *account.Manager
		chats   *postgres.ChatRepository
		posts   *postgres.PostRepository
		netlog  *postgres.NetlogRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx)

		policy, err := contentpolicy.New(contentpolicy.Config{ReservedUsernames: []string{"admin*"}})
		Expect(err).NotTo(HaveOccurred())

		repos := postgres.NewRepositories(testPool)
		chats = repos.Chats.(*postgres.ChatRepository)
		posts = repos.Posts.(*postgres.PostRepository)
		netlog = repos.Netlog.(*postgres.NetlogRepository)

		manager, err = account.NewManager(repos, account.NewBcryptHasher(), policy,
			account.WithDefaultCost(account.MinCost),
			account.WithLogger(slog.New(slog.DiscardHandler)),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates and authenticates an account", func() {
		Expect(manager.Create(ctx, "Alice", "pw1", account.MinCost)).To(Equal(account.Created))
		Expect(manager.Create(ctx, "alice", "pw2", account.MinCost)).To(Equal(account.Exists))

		Expect(manager.Exists(ctx, "ALICE", true)).To(Equal(account.Exists))
		Expect(manager.Exists(ctx, "ALICE", false)).To(Equal(account.Exists))
		Expect(manager.Exists(ctx, "Alice", false)).To(Equal(account.NotFound))

		Expect(manager.Authenticate(ctx, "Alice", "pw1")).To(Equal(account.Authenticated))
		Expect(manager.Authenticate(ctx, "Alice", "nope")).To(Equal(account.NotAuthenticated))
		Expect(manager.Authenticate(ctx, "alice", "pw1")).To(Equal(account.NotFound))
	})

	It("issues tokens that survive a round trip", func() {
		Expect(manager.Create(ctx, "bob", "pw", account.MinCost)).To(Equal(account.Created))

		token, outcome, err := manager.IssueToken(ctx, "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(account.Updated))

		Expect(manager.Authenticate(ctx, "bob", token)).To(Equal(account.AuthenticatedByToken))
		Expect(manager.RevokeToken(ctx, "bob", token)).To(Equal(account.Updated))
		Expect(manager.Authenticate(ctx, "bob", token)).To(Equal(account.NotAuthenticated))
	})

	It("initializes tokens for a legacy row", func() {
		Expect(manager.Create(ctx, "legacy", "pw", account.MinCost)).To(Equal(account.Created))
		_, err := testPool.Exec(ctx, `UPDATE accounts SET tokens = NULL WHERE username = 'legacy'`)
		Expect(err).NotTo(HaveOccurred())

		Expect(manager.Authenticate(ctx, "legacy", "pw")).To(Equal(account.Authenticated))

		acct, err := postgres.NewAccountRepository(testPool).Get(ctx, "legacy")
		Expect(err).NotTo(HaveOccurred())
		Expect(acct.Tokens).NotTo(BeNil())
	})

	It("persists settings and projects views", func() {
		Expect(manager.Create(ctx, "carol", "pw", account.MinCost)).To(Equal(account.Created))

		outcome, err := manager.UpdateSettings(ctx, "carol", map[string]any{
			account.KeyTheme: "blue",
			account.KeyQuote: "good vibes only",
			account.KeyLevel: 2,
			account.KeyExtra: map[string]any{"pet": "cat"},
		}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(account.Updated))

		doc, outcome, err := manager.View(ctx, "carol", true, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(account.Exists))
		Expect(doc).To(HaveKeyWithValue(account.KeyTheme, "blue"))
		Expect(doc).To(HaveKeyWithValue(account.KeyQuote, "good vibes only"))
		Expect(doc).To(HaveKeyWithValue(account.KeyLevel, 2))
		Expect(doc).NotTo(HaveKey(account.KeyPasswordHash))
		Expect(doc[account.KeyExtra]).To(HaveKeyWithValue("pet", "cat"))
	})

	It("deletes an account and its footprint", func() {
		Expect(manager.Create(ctx, "dave", "pw", account.MinCost)).To(Equal(account.Created))
		Expect(chats.Create(ctx, &account.Chat{ID: "c1", Owner: "dave", Members: []string{"dave", "erin"}})).To(Succeed())
		Expect(chats.Create(ctx, &account.Chat{ID: "c2", Owner: "erin", Members: []string{"erin", "dave"}})).To(Succeed())
		Expect(posts.Create(ctx, &account.Post{ID: "p1", Origin: "home", Author: "dave", Content: "hi", Created: time.Now()})).To(Succeed())
		Expect(netlog.Put(ctx, &account.NetlogEntry{IP: "10.0.0.1", Users: []string{"dave"}, LastUser: "dave"})).To(Succeed())
		Expect(netlog.Put(ctx, &account.NetlogEntry{IP: "10.0.0.2", Users: []string{"erin", "dave"}, LastUser: "dave"})).To(Succeed())

		report, outcome, err := manager.Delete(ctx, "dave")
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(account.Deleted))
		Expect(report.Err()).NotTo(HaveOccurred())
		Expect(report.ChatsDeleted).To(Equal(1))
		Expect(report.ChatsDetached).To(Equal(1))
		Expect(report.PostsDeleted).To(Equal(1))
		Expect(report.NetlogDeleted).To(Equal(1))
		Expect(report.NetlogUpdated).To(Equal(1))

		Expect(manager.Exists(ctx, "dave", true)).To(Equal(account.NotFound))

		chat, err := chats.Get(ctx, "c2")
		Expect(err).NotTo(HaveOccurred())
		Expect(chat.Members).To(Equal([]string{"erin"}))

		n, err := posts.CountByAuthor(ctx, "dave")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		entry, err := netlog.Get(ctx, "10.0.0.2")
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Users).To(Equal([]string{"erin"}))
		Expect(entry.LastUser).To(Equal("erin"))
	})
})
