// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chirpyard Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/chirpyard/chirpyard/internal/account"
)

// PostRepository implements account.PostRepository.
type PostRepository struct {
	db DB
}

// NewPostRepository creates a PostRepository.
func NewPostRepository(db DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts post.
func (r *PostRepository) Create(ctx context.Context, post *account.Post) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO posts (id, origin, author, content, created) VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.Origin, post.Author, post.Content, post.Created)
	if isUniqueViolation(err) {
		return oops.Code("POST_EXISTS").With("post_id", post.ID).Wrap(account.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("POST_CREATE_FAILED").With("post_id", post.ID).Wrap(err)
	}
	return nil
}

// CountByAuthor reports how many posts author has.
func (r *PostRepository) CountByAuthor(ctx context.Context, author string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM posts WHERE author = $1`, author).Scan(&n); err != nil {
		return 0, oops.Code("POST_QUERY_FAILED").With("author", author).Wrap(err)
	}
	return n, nil
}

// DeleteByAuthor removes every post by author.
func (r *PostRepository) DeleteByAuthor(ctx context.Context, author string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE author = $1`, author)
	if err != nil {
		return 0, oops.Code("POST_DELETE_FAILED").With("author", author).Wrap(err)
	}
	return int(tag.RowsAffected()), nil
}
