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

// NetlogRepository implements account.NetlogRepository.
type NetlogRepository struct {
	db DB
}

// NewNetlogRepository creates a NetlogRepository.
func NewNetlogRepository(db DB) *NetlogRepository {
	return &NetlogRepository{db: db}
}

// Put inserts or replaces the entry for entry.IP.
func (r *NetlogRepository) Put(ctx context.Context, entry *account.NetlogEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO netlog (ip, users, last_user) VALUES ($1, $2, $3)
		ON CONFLICT (ip) DO UPDATE SET users = EXCLUDED.users, last_user = EXCLUDED.last_user
	`, entry.IP, members(entry.Users), entry.LastUser)
	if err != nil {
		return oops.Code("NETLOG_PUT_FAILED").With("ip", entry.IP).Wrap(err)
	}
	return nil
}

// Get loads the entry for ip.
func (r *NetlogRepository) Get(ctx context.Context, ip string) (*account.NetlogEntry, error) {
	var entry account.NetlogEntry
	err := r.db.QueryRow(ctx, `SELECT ip, users, last_user FROM netlog WHERE ip = $1`, ip).
		Scan(&entry.IP, &entry.Users, &entry.LastUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("NETLOG_NOT_FOUND").With("ip", ip).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("NETLOG_GET_FAILED").With("ip", ip).Wrap(err)
	}
	return &entry, nil
}

// FindByUser returns the entries whose user list contains user.
func (r *NetlogRepository) FindByUser(ctx context.Context, user string) ([]*account.NetlogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ip, users, last_user FROM netlog WHERE $1 = ANY(users) ORDER BY ip`, user)
	if err != nil {
		return nil, oops.Code("NETLOG_QUERY_FAILED").With("user", user).Wrap(err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*account.NetlogEntry, error) {
		var entry account.NetlogEntry
		err := row.Scan(&entry.IP, &entry.Users, &entry.LastUser)
		return &entry, err
	})
	if err != nil {
		return nil, oops.Code("NETLOG_QUERY_FAILED").With("user", user).Wrap(err)
	}
	return entries, nil
}

// Update replaces an existing entry.
func (r *NetlogRepository) Update(ctx context.Context, entry *account.NetlogEntry) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE netlog SET users = $2, last_user = $3 WHERE ip = $1`,
		entry.IP, members(entry.Users), entry.LastUser)
	if err != nil {
		return oops.Code("NETLOG_UPDATE_FAILED").With("ip", entry.IP).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("NETLOG_NOT_FOUND").With("ip", entry.IP).Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes the entry for ip.
func (r *NetlogRepository) Delete(ctx context.Context, ip string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM netlog WHERE ip = $1`, ip)
	if err != nil {
		return oops.Code("NETLOG_DELETE_FAILED").With("ip", ip).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("NETLOG_NOT_FOUND").With("ip", ip).Wrap(account.ErrNotFound)
	}
	return nil
}
