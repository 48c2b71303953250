// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/chirpyard/chirpyard/internal/account"
)

// ChatRepository implements account.ChatRepository.
type ChatRepository struct {
	db DB
}

// NewChatRepository creates a ChatRepository.
func NewChatRepository(db DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create inserts chat.
func (r *ChatRepository) Create(ctx context.Context, chat *account.Chat) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chats (id, nickname, owner, members) VALUES ($1, $2, $3, $4)`,
		chat.ID, chat.Nickname, chat.Owner, members(chat.Members))
	if isUniqueViolation(err) {
		return oops.Code("CHAT_EXISTS").With("chat_id", chat.ID).Wrap(account.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("CHAT_CREATE_FAILED").With("chat_id", chat.ID).Wrap(err)
	}
	return nil
}

// Get loads one chat.
func (r *ChatRepository) Get(ctx context.Context, id string) (*account.Chat, error) {
	var chat account.Chat
	err := r.db.QueryRow(ctx,
		`SELECT id, nickname, owner, members FROM chats WHERE id = $1`, id).
		Scan(&chat.ID, &chat.Nickname, &chat.Owner, &chat.Members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CHAT_NOT_FOUND").With("chat_id", id).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHAT_GET_FAILED").With("chat_id", id).Wrap(err)
	}
	return &chat, nil
}

// DeleteByOwner removes every chat owned by owner.
func (r *ChatRepository) DeleteByOwner(ctx context.Context, owner string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chats WHERE owner = $1`, owner)
	if err != nil {
		return 0, oops.Code("CHAT_DELETE_FAILED").With("owner", owner).Wrap(err)
	}
	return int(tag.RowsAffected()), nil
}

// FindByMember returns the chats whose member list contains member.
func (r *ChatRepository) FindByMember(ctx context.Context, member string) ([]*account.Chat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, nickname, owner, members FROM chats WHERE $1 = ANY(members) ORDER BY id`, member)
	if err != nil {
		return nil, oops.Code("CHAT_QUERY_FAILED").With("member", member).Wrap(err)
	}
	chats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*account.Chat, error) {
		var chat account.Chat
		err := row.Scan(&chat.ID, &chat.Nickname, &chat.Owner, &chat.Members)
		return &chat, err
	})
	if err != nil {
		return nil, oops.Code("CHAT_QUERY_FAILED").With("member", member).Wrap(err)
	}
	return chats, nil
}

// Update replaces an existing chat.
func (r *ChatRepository) Update(ctx context.Context, chat *account.Chat) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE chats SET nickname = $2, owner = $3, members = $4 WHERE id = $1`,
		chat.ID, chat.Nickname, chat.Owner, members(chat.Members))
	if err != nil {
		return oops.Code("CHAT_UPDATE_FAILED").With("chat_id", chat.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("CHAT_NOT_FOUND").With("chat_id", chat.ID).Wrap(account.ErrNotFound)
	}
	return nil
}

// members keeps NOT NULL array columns from receiving a nil slice.
func members(m []string) []string {
	if m == nil {
		return []string{}
	}
	return m
}
