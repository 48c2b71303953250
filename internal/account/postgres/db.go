// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

// Package postgres implements the account repositories on PostgreSQL.
// The schema lives in internal/store/migrations.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chirpyard/chirpyard/internal/account"
)

// DB is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewRepositories wires every repository to db.
func NewRepositories(db DB) account.Repositories {
	return account.Repositories{
		Accounts: NewAccountRepository(db),
		Chats:    NewChatRepository(db),
		Posts:    NewPostRepository(db),
		Netlog:   NewNetlogRepository(db),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
