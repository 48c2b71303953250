// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/chirpyard/chirpyard/internal/account"
)

const accountColumns = `username, lower_username, id, password_hash, tokens,
	level, banned, email, last_ip, created, preferences`

// AccountRepository implements account.AccountRepository.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Get loads the account keyed exactly by username.
func (r *AccountRepository) Get(ctx context.Context, username string) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").With("username", username).Wrap(err)
	}
	return acct, nil
}

// FindByLowerUsername returns every primary key sharing lower.
func (r *AccountRepository) FindByLowerUsername(ctx context.Context, lower string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT username FROM accounts WHERE lower_username = $1 ORDER BY username`, lower)
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("lower_username", lower).Wrap(err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("lower_username", lower).Wrap(err)
	}
	return names, nil
}

// Create inserts acct. Either unique key colliding yields ErrAlreadyExists.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	prefs, err := json.Marshal(acct.Preferences)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "marshal preferences").
			With("username", acct.Username).
			Wrap(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		acct.Username,
		acct.LowerUsername,
		acct.ID.String(),
		acct.PasswordHash,
		acct.Tokens,
		acct.Level,
		acct.Banned,
		acct.Email,
		acct.LastIP,
		acct.Created,
		prefs,
	)
	if isUniqueViolation(err) {
		return oops.Code("ACCOUNT_EXISTS").With("username", acct.Username).Wrap(account.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("username", acct.Username).Wrap(err)
	}
	return nil
}

// Update replaces every mutable column of acct.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	prefs, err := json.Marshal(acct.Preferences)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "marshal preferences").
			With("username", acct.Username).
			Wrap(err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, tokens = $3, level = $4, banned = $5,
		    email = $6, last_ip = $7, preferences = $8
		WHERE username = $1
	`,
		acct.Username,
		acct.PasswordHash,
		acct.Tokens,
		acct.Level,
		acct.Banned,
		acct.Email,
		acct.LastIP,
		prefs,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("username", acct.Username).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", acct.Username).Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes the account keyed by username.
func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE username = $1`, username)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").With("username", username).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(account.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acct  account.Account
		prefs []byte
	)
	err := row.Scan(
		&acct.Username,
		&acct.LowerUsername,
		&acct.ID,
		&acct.PasswordHash,
		&acct.Tokens,
		&acct.Level,
		&acct.Banned,
		&acct.Email,
		&acct.LastIP,
		&acct.Created,
		&prefs,
	)
	if err != nil {
		return nil, err
	}

	acct.Preferences = account.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &acct.Preferences); err != nil {
			return nil, oops.With("operation", "unmarshal preferences").Wrap(err)
		}
	}
	acct.Created = acct.Created.UTC()
	return &acct, nil
}
