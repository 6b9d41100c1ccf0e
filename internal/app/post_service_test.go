package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"darim/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPostRepo struct {
	getFn    func(ctx context.Context, id int64) (*domain.Post, error)
	listFn   func(ctx context.Context, ownerID int64) ([]domain.Post, error)
	createFn func(ctx context.Context, p *domain.Post) (int64, error)
	updateFn func(ctx context.Context, id, ownerID int64, upd domain.PostUpdate, updatedAt time.Time) (bool, error)
	deleteFn func(ctx context.Context, id, ownerID int64) (bool, error)
}

func (m *mockPostRepo) Get(ctx context.Context, id int64) (*domain.Post, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPostRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockPostRepo) Create(ctx context.Context, p *domain.Post) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return 1, nil
}

func (m *mockPostRepo) Update(ctx context.Context, id, ownerID int64, upd domain.PostUpdate, updatedAt time.Time) (bool, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, ownerID, upd, updatedAt)
	}
	return true, nil
}

func (m *mockPostRepo) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id, ownerID)
	}
	return true, nil
}

var someDate = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func TestPostService_DeleteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "kim@example.com", "pw")
	other := f.createUser(t, "lee@example.com", "pw")
	_, ownerSess := f.login(t, owner)
	_, otherSess := f.login(t, other)

	postID, err := f.posts.Create(ctx, ownerSess, CreatePostArgs{Title: "day one", Content: "...", Date: someDate})
	require.NoError(t, err)

	ok, err := f.posts.Delete(ctx, otherSess, postID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, ok)

	ok, err = f.posts.Delete(ctx, ownerSess, postID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.posts.Get(ctx, ownerSess, postID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostService_CreateStampsOwnerFromSession(t *testing.T) {
	var stored *domain.Post
	svc := NewPostService(&mockPostRepo{createFn: func(ctx context.Context, p *domain.Post) (int64, error) {
		stored = p
		return 10, nil
	}})

	id, err := svc.Create(context.Background(), &UserSession{UserID: 2}, CreatePostArgs{
		Title: "t", Content: "c", Date: someDate,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 10, id)
	require.NotNil(t, stored)
	assert.EqualValues(t, 2, stored.OwnerID)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestPostService_AnonymousCallsAreUnauthorized(t *testing.T) {
	called := false
	svc := NewPostService(&mockPostRepo{
		getFn: func(ctx context.Context, id int64) (*domain.Post, error) {
			called = true
			return nil, nil
		},
	})
	ctx := context.Background()
	title := "x"

	_, err := svc.Get(ctx, nil, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.List(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Create(ctx, nil, CreatePostArgs{Title: "t", Content: "c", Date: someDate})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Update(ctx, nil, 1, UpdatePostArgs{Title: &title})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Update(ctx, nil, 1, UpdatePostArgs{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "empty patch")
	blank := " "
	_, err = svc.Update(ctx, nil, 1, UpdatePostArgs{Title: &blank})
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "blank title")
	_, err = svc.Delete(ctx, nil, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.False(t, called, "anonymous callers never reach storage")
}

func TestPostService_ForeignPostIsUnauthorized(t *testing.T) {
	mutated := false
	svc := NewPostService(&mockPostRepo{
		getFn: func(ctx context.Context, id int64) (*domain.Post, error) {
			return &domain.Post{ID: id, OwnerID: 1, Title: "mine"}, nil
		},
		updateFn: func(ctx context.Context, id, ownerID int64, upd domain.PostUpdate, updatedAt time.Time) (bool, error) {
			mutated = true
			return true, nil
		},
		deleteFn: func(ctx context.Context, id, ownerID int64) (bool, error) {
			mutated = true
			return true, nil
		},
	})
	ctx := context.Background()
	intruder := &UserSession{UserID: 2}
	title := "pwned"

	_, err := svc.Get(ctx, intruder, 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Update(ctx, intruder, 10, UpdatePostArgs{Title: &title})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Delete(ctx, intruder, 10)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, mutated)
}

func TestPostService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "kim@example.com", "pw")
	_, sess := f.login(t, owner)

	id, err := f.posts.Create(ctx, sess, CreatePostArgs{Title: "t", Content: "c", Date: someDate})
	require.NoError(t, err)

	title := "new title"
	newDate := someDate.AddDate(0, 0, 1)
	ok, err := f.posts.Update(ctx, sess, id, UpdatePostArgs{Title: &title, Date: &newDate})
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := f.posts.Get(ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, "new title", p.Title)
	assert.Equal(t, "c", p.Content)
	assert.True(t, p.Date.Equal(newDate))
	assert.NotNil(t, p.UpdatedAt)

	_, err = f.posts.Update(ctx, sess, id, UpdatePostArgs{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.posts.Update(ctx, sess, 999, UpdatePostArgs{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "kim@example.com", "pw")
	other := f.createUser(t, "lee@example.com", "pw")
	_, sess := f.login(t, owner)
	_, otherSess := f.login(t, other)

	for i := range 3 {
		_, err := f.posts.Create(ctx, sess, CreatePostArgs{Title: "t", Content: "c", Date: someDate.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	posts, err := f.posts.List(ctx, sess)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.True(t, posts[0].Date.After(posts[2].Date))

	posts, err = f.posts.List(ctx, otherSess)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostService_CreateValidation(t *testing.T) {
	svc := NewPostService(&mockPostRepo{})
	sess := &UserSession{UserID: 1}
	tests := []struct {
		name string
		args CreatePostArgs
	}{
		{"missing title", CreatePostArgs{Content: "c", Date: someDate}},
		{"blank title", CreatePostArgs{Title: "  ", Content: "c", Date: someDate}},
		{"missing content", CreatePostArgs{Title: "t", Date: someDate}},
		{"missing date", CreatePostArgs{Title: "t", Content: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), sess, tt.args)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestPostService_StorageErrorsAreInternal(t *testing.T) {
	boom := errors.New("db down")
	svc := NewPostService(&mockPostRepo{
		getFn:    func(ctx context.Context, id int64) (*domain.Post, error) { return nil, boom },
		listFn:   func(ctx context.Context, ownerID int64) ([]domain.Post, error) { return nil, boom },
		createFn: func(ctx context.Context, p *domain.Post) (int64, error) { return 0, boom },
	})
	ctx := context.Background()
	sess := &UserSession{UserID: 1}

	_, err := svc.Get(ctx, sess, 1)
	assert.ErrorIs(t, err, domain.ErrInternal)
	_, err = svc.List(ctx, sess)
	assert.ErrorIs(t, err, domain.ErrInternal)
	_, err = svc.Create(ctx, sess, CreatePostArgs{Title: "t", Content: "c", Date: someDate})
	assert.ErrorIs(t, err, domain.ErrInternal)
}
