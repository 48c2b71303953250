// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package account_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chirpyard/chirpyard/internal/account"
	"github.com/chirpyard/chirpyard/internal/account/memstore"
	"github.com/chirpyard/chirpyard/internal/contentpolicy"
)

func testPolicy(t *testing.T) *contentpolicy.Policy {
	t.Helper()
	policy, err := contentpolicy.New(contentpolicy.Config{ReservedUsernames: []string{"admin*"}})
	require.NoError(t, err)
	return policy
}

func newManager(t *testing.T, repos account.Repositories, opts ...account.ManagerOption) *account.Manager {
	t.Helper()
	base := []account.ManagerOption{
		account.WithDefaultCost(account.MinCost),
		account.WithLogger(slog.New(slog.DiscardHandler)),
	}
	m, err := account.NewManager(repos, account.NewBcryptHasher(), testPolicy(t), append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func newMemManager(t *testing.T, opts ...account.ManagerOption) (*account.Manager, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return newManager(t, store.Repositories(), opts...), store
}

func mustCreate(t *testing.T, m *account.Manager, username, password string) {
	t.Helper()
	outcome, err := m.Create(context.Background(), username, password, 0)
	require.NoError(t, err)
	require.Equal(t, account.Created, outcome)
}

// mockAccountRepository is a mock for account.AccountRepository.
type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Get(ctx context.Context, username string) (*account.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *mockAccountRepository) FindByLowerUsername(ctx context.Context, lower string) ([]string, error) {
	args := m.Called(ctx, lower)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockAccountRepository) Create(ctx context.Context, acct *account.Account) error {
	return m.Called(ctx, acct).Error(0)
}

func (m *mockAccountRepository) Update(ctx context.Context, acct *account.Account) error {
	return m.Called(ctx, acct).Error(0)
}

func (m *mockAccountRepository) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

// mockChatRepository is a mock for account.ChatRepository.
type mockChatRepository struct {
	mock.Mock
}

func (m *mockChatRepository) DeleteByOwner(ctx context.Context, owner string) (int, error) {
	args := m.Called(ctx, owner)
	return args.Int(0), args.Error(1)
}

func (m *mockChatRepository) FindByMember(ctx context.Context, member string) ([]*account.Chat, error) {
	args := m.Called(ctx, member)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Chat), args.Error(1)
}

func (m *mockChatRepository) Update(ctx context.Context, chat *account.Chat) error {
	return m.Called(ctx, chat).Error(0)
}

// mockPostRepository is a mock for account.PostRepository.
type mockPostRepository struct {
	mock.Mock
}

func (m *mockPostRepository) DeleteByAuthor(ctx context.Context, author string) (int, error) {
	args := m.Called(ctx, author)
	return args.Int(0), args.Error(1)
}

// stubLimiter is a fixed-answer account.AttemptLimiter.
type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return false, 0, s.err
	}
	if !s.allowed {
		return false, time.Second, nil
	}
	return true, 0, nil
}
