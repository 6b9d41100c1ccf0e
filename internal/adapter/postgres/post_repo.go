package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"darim/internal/domain"
)

type postRepo struct {
	q DBTX
}

const postColumns = "id, user_id, title, content, date, created_at, updated_at"

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		p       domain.Post
		updated sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Content, &p.Date, &p.CreatedAt, &updated); err != nil {
		return nil, err
	}
	if updated.Valid {
		p.UpdatedAt = &updated.Time
	}
	return &p, nil
}

// Get retrieves a post by ID.
func (r postRepo) Get(ctx context.Context, id int64) (*domain.Post, error) {
	p, err := scanPost(r.q.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListByOwner returns the owner's posts, newest date first.
func (r postRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE user_id = $1 ORDER BY date DESC, id DESC", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a post. A missing owner yields domain.ErrNotFound.
func (r postRepo) Create(ctx context.Context, p *domain.Post) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx,
		"INSERT INTO posts (user_id, title, content, date, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		p.OwnerID, p.Title, p.Content, p.Date.UTC(), p.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

// Update applies the non-nil fields of upd to a post owned by ownerID.
func (r postRepo) Update(ctx context.Context, id, ownerID int64, upd domain.PostUpdate, updatedAt time.Time) (bool, error) {
	var date *time.Time
	if upd.Date != nil {
		d := upd.Date.UTC()
		date = &d
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE posts SET
			title = COALESCE($3, title),
			content = COALESCE($4, content),
			date = COALESCE($5, date),
			updated_at = $6
		WHERE id = $1 AND user_id = $2`,
		id, ownerID, upd.Title, upd.Content, date, updatedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

// Delete removes a post owned by ownerID.
func (r postRepo) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM posts WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}
