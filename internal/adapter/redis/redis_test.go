package redis

import (
	"context"
	"testing"
	"time"

	"darim/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*SessionRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionRepo(rdb), mr
}

func newSession(id string, userID int64, ttl time.Duration) *domain.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Session{ID: id, UserID: userID, Version: 3, UserAgent: "ua", IP: "10.0.0.1", CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := Connect(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = Connect(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}

func TestSessionRepo_CreateGet(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	s := newSession("s1", 1, time.Hour)

	require.NoError(t, repo.Create(ctx, s))
	assert.True(t, mr.Exists(sessionKey("s1")))
	assert.Greater(t, mr.TTL(sessionKey("s1")), time.Duration(0))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, s.Version, got.Version)
	assert.Equal(t, s.UserAgent, got.UserAgent)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionRepo_ExpiredSessionIsGone(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSession("s1", 1, time.Minute)))

	mr.FastForward(2 * time.Minute)
	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Create(ctx, newSession("old", 1, -time.Minute)))
	assert.False(t, mr.Exists(sessionKey("old")))
	require.NoError(t, repo.DeleteExpired(ctx))
}

func TestSessionRepo_Delete(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSession("s1", 1, time.Hour)))

	require.NoError(t, repo.Delete(ctx, "s1"))
	assert.False(t, mr.Exists(sessionKey("s1")))
	members, _ := mr.Members(userSessionsKey(1))
	assert.NotContains(t, members, "s1")

	require.NoError(t, repo.Delete(ctx, "s1"), "idempotent")
}

func TestSessionRepo_DeleteByUser(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newSession("a", 1, time.Hour)))
	require.NoError(t, repo.Create(ctx, newSession("b", 1, time.Hour)))
	require.NoError(t, repo.Create(ctx, newSession("c", 2, time.Hour)))

	require.NoError(t, repo.DeleteByUser(ctx, 1))
	assert.False(t, mr.Exists(sessionKey("a")))
	assert.False(t, mr.Exists(sessionKey("b")))
	assert.False(t, mr.Exists(userSessionsKey(1)))
	assert.True(t, mr.Exists(sessionKey("c")))

	require.NoError(t, repo.DeleteByUser(ctx, 42))
}
