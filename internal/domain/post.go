package domain

import (
	"context"
	"time"
)

// Post is a diary entry owned by a single user.
type Post struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"user_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Date      time.Time  `json:"date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// PostUpdate carries the optional fields of a post update.
type PostUpdate struct {
	Title   *string
	Content *string
	Date    *time.Time
}

// PostRepository is the port for post persistence. Mutations are scoped by
// owner so a row is only touched when both id and owner match.
type PostRepository interface {
	Get(ctx context.Context, id int64) (*Post, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Post, error)
	Create(ctx context.Context, p *Post) (int64, error)
	Update(ctx context.Context, id, ownerID int64, upd PostUpdate, updatedAt time.Time) (bool, error)
	Delete(ctx context.Context, id, ownerID int64) (bool, error)
}
