package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"darim/internal/adapter/memory"
	"darim/internal/auth"
	"darim/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserRepo struct {
	getByIDFn    func(ctx context.Context, id int64) (*domain.User, error)
	getByEmailFn func(ctx context.Context, email string) (*domain.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) (int64, error) {
	return 1, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id int64, upd domain.UserUpdate) (bool, error) {
	return true, nil
}

func (m *mockUserRepo) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	return true, nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, s *domain.Session) error
	getFn           func(ctx context.Context, id string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, id string) error
	deleteByUserFn  func(ctx context.Context, userID int64) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUser(ctx context.Context, userID int64) error {
	if m.deleteByUserFn != nil {
		return m.deleteByUserFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

func TestSessionManager_EstablishAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")

	h, err := f.sessions.Establish(ctx, id, 0, ClientInfo{UserAgent: "ua", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, h.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), h.ExpiresAt, time.Minute)

	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "ua"})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, id, s.UserID)
}

func TestSessionManager_EstablishUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Establish(context.Background(), 404, 0, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionManager_ResolveReturnsNil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")
	h, _ := f.login(t, id)

	forged, err := auth.GenerateToken("no-such-session", testSecret, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	otherKey, err := auth.GenerateToken("x", []byte("a-different-secret-a-different-s"), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		client ClientInfo
	}{
		{"empty token", "", ClientInfo{UserAgent: "test"}},
		{"malformed token", "abc.def", ClientInfo{UserAgent: "test"}},
		{"unknown session", forged, ClientInfo{UserAgent: "test"}},
		{"foreign signature", otherKey, ClientInfo{UserAgent: "test"}},
		{"different user agent", h.Token, ClientInfo{UserAgent: "curl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.sessions.Resolve(ctx, tt.token, tt.client)
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}

	// The user-agent mismatch dropped the session for good.
	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionManager_ResolveExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")
	h, _ := f.login(t, id)

	f.sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionManager_ResolveStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")
	h, _ := f.login(t, id)

	require.NoError(t, f.db.Users().SetPassword(ctx, id, "rotated"))

	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionManager_ResolveDeletedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")
	h, _ := f.login(t, id)

	_, err := f.db.Users().Delete(ctx, id)
	require.NoError(t, err)

	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionManager_InvalidateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")
	h, _ := f.login(t, id)

	require.NoError(t, f.sessions.Invalidate(ctx, h.Token))
	require.NoError(t, f.sessions.Invalidate(ctx, h.Token))
	require.NoError(t, f.sessions.Invalidate(ctx, "garbage"))

	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionManager_InvalidateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kim := f.createUser(t, "kim@example.com", "pw")
	lee := f.createUser(t, "lee@example.com", "pw")
	h1, _ := f.login(t, kim)
	h2, _ := f.login(t, kim)
	h3, _ := f.login(t, lee)

	require.NoError(t, f.sessions.InvalidateUser(ctx, kim))
	require.NoError(t, f.sessions.InvalidateUser(ctx, kim))

	for _, tok := range []string{h1.Token, h2.Token} {
		s, err := f.sessions.Resolve(ctx, tok, ClientInfo{UserAgent: "test"})
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	s, err := f.sessions.Resolve(ctx, h3.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	assert.NotNil(t, s, "other users keep their sessions")
}

func TestSessionManager_StorageFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	users := &mockUserRepo{getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
		return &domain.User{ID: id}, nil
	}}
	sessions := &mockSessionRepo{
		createFn:       func(ctx context.Context, s *domain.Session) error { return boom },
		getFn:          func(ctx context.Context, id string) (*domain.Session, error) { return nil, boom },
		deleteByUserFn: func(ctx context.Context, userID int64) error { return boom },
		deleteExpiredFn: func(ctx context.Context) error {
			return boom
		},
	}
	m := NewSessionManager(users, sessions, testSecret, time.Hour)

	_, err := m.Establish(ctx, 1, 0, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrInternal)

	tok, err := auth.GenerateToken("sid", testSecret, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = m.Resolve(ctx, tok, ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrInternal)

	assert.ErrorIs(t, m.InvalidateUser(ctx, 1), domain.ErrInternal)
	assert.ErrorIs(t, m.PurgeExpired(ctx), domain.ErrInternal)
}

func TestSessionManager_EstablishStampsUserVersion(t *testing.T) {
	var created *domain.Session
	users := &mockUserRepo{getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
		return &domain.User{ID: id, SessionVersion: 3}, nil
	}}
	sessions := &mockSessionRepo{createFn: func(ctx context.Context, s *domain.Session) error {
		created = s
		return nil
	}}
	m := NewSessionManager(users, sessions, testSecret, time.Hour)

	_, err := m.Establish(context.Background(), 9, 3, ClientInfo{UserAgent: "ua", IP: "127.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.EqualValues(t, 9, created.UserID)
	assert.EqualValues(t, 3, created.Version)
	assert.Equal(t, "ua", created.UserAgent)
	assert.Equal(t, "127.0.0.1", created.IP)
}

func TestSessionManager_EstablishRefusesRevokedVersion(t *testing.T) {
	users := &mockUserRepo{getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
		return &domain.User{ID: id, SessionVersion: 3}, nil
	}}
	sessions := &mockSessionRepo{createFn: func(ctx context.Context, s *domain.Session) error {
		t.Error("no session should be stored")
		return nil
	}}
	m := NewSessionManager(users, sessions, testSecret, time.Hour)

	_, err := m.Establish(context.Background(), 9, 2, ClientInfo{UserAgent: "ua"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSessionManager_ConcurrentEstablishAndInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "kim@example.com", "pw")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.sessions.Establish(ctx, id, 0, ClientInfo{UserAgent: "test"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, f.sessions.InvalidateUser(ctx, id))
		}()
	}
	wg.Wait()
	assert.Zero(t, f.sessions.locks.size())
}

func TestSessionManager_RunJanitor(t *testing.T) {
	repo := memory.NewSessionRepo()
	m := NewSessionManager(&mockUserRepo{}, repo, testSecret, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	purged := make(chan struct{}, 1)
	m.sessions = &mockSessionRepo{deleteExpiredFn: func(ctx context.Context) error {
		select {
		case purged <- struct{}{}:
		default:
		}
		return nil
	}}

	done := make(chan struct{})
	go func() {
		m.RunJanitor(ctx, 5*time.Millisecond, nil)
		close(done)
	}()

	select {
	case <-purged:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never purged")
	}
	cancel()
	<-done
}
