package app

import (
	"context"
	"strings"
	"time"

	"darim/internal/domain"
)

// CreatePostArgs are the client-supplied fields of a new post. The owner is
// always the caller.
type CreatePostArgs struct {
	Title   string
	Content string
	Date    time.Time
}

// UpdatePostArgs are the optional fields of a post update.
type UpdatePostArgs struct {
	Title   *string
	Content *string
	Date    *time.Time
}

// PostService encapsulates the post use cases. Every operation is scoped to
// the calling session.
type PostService struct {
	posts domain.PostRepository
	now   func() time.Time
}

// NewPostService creates a PostService backed by the given repository.
func NewPostService(posts domain.PostRepository) *PostService {
	return &PostService{posts: posts, now: time.Now}
}

// Get returns one of the caller's posts.
func (s *PostService) Get(ctx context.Context, session *UserSession, postID int64) (*domain.Post, error) {
	post, _, err := s.owned(ctx, session, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// List returns the caller's posts, newest date first.
func (s *PostService) List(ctx context.Context, session *UserSession) ([]domain.Post, error) {
	ownerID, err := requireSession(session)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, domain.Internal("list posts", err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return posts, nil
}

// Create stores a new post owned by the caller and returns its id.
func (s *PostService) Create(ctx context.Context, session *UserSession, args CreatePostArgs) (int64, error) {
	ownerID, err := requireSession(session)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(args.Title) == "" || args.Content == "" || args.Date.IsZero() {
		return 0, domain.ErrInvalidArgument
	}

	id, err := s.posts.Create(ctx, &domain.Post{
		OwnerID:   ownerID,
		Title:     args.Title,
		Content:   args.Content,
		Date:      args.Date.UTC(),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return 0, domain.Internal("create post", err)
	}
	return id, nil
}

// Update changes one of the caller's posts.
func (s *PostService) Update(ctx context.Context, session *UserSession, postID int64, args UpdatePostArgs) (bool, error) {
	if _, err := requireSession(session); err != nil {
		return false, err
	}
	if args.Title == nil && args.Content == nil && args.Date == nil {
		return false, domain.ErrInvalidArgument
	}
	if args.Title != nil && strings.TrimSpace(*args.Title) == "" {
		return false, domain.ErrInvalidArgument
	}

	_, ownerID, err := s.owned(ctx, session, postID)
	if err != nil {
		return false, err
	}

	upd := domain.PostUpdate{Title: args.Title, Content: args.Content}
	if args.Date != nil {
		d := args.Date.UTC()
		upd.Date = &d
	}
	ok, err := s.posts.Update(ctx, postID, ownerID, upd, s.now().UTC())
	if err != nil {
		return false, domain.Internal("update post", err)
	}
	if !ok {
		return false, domain.ErrNotFound
	}
	return true, nil
}

// Delete removes one of the caller's posts.
func (s *PostService) Delete(ctx context.Context, session *UserSession, postID int64) (bool, error) {
	_, ownerID, err := s.owned(ctx, session, postID)
	if err != nil {
		return false, err
	}
	ok, err := s.posts.Delete(ctx, postID, ownerID)
	if err != nil {
		return false, domain.Internal("delete post", err)
	}
	if !ok {
		return false, domain.ErrNotFound
	}
	return true, nil
}

// owned loads the post and authorizes the caller against its owner.
// Anonymous callers are rejected before the lookup so they cannot probe ids.
func (s *PostService) owned(ctx context.Context, session *UserSession, postID int64) (*domain.Post, int64, error) {
	if _, err := requireSession(session); err != nil {
		return nil, 0, err
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, 0, domain.Internal("load post", err)
	}
	if post == nil {
		return nil, 0, domain.ErrNotFound
	}
	ownerID, err := Authorize(session, post.OwnerID)
	if err != nil {
		return nil, 0, err
	}
	return post, ownerID, nil
}
