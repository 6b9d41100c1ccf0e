package app

import (
	"context"
	"strconv"
	"time"

	"darim/internal/auth"
	"darim/internal/domain"
	"darim/internal/logging"

	"github.com/google/uuid"
)

// ClientInfo describes the client presenting a session.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// SessionHandle is what a client receives after logging in.
type SessionHandle struct {
	Token     string
	ExpiresAt time.Time
}

// SessionManager creates, resolves and invalidates sessions. It knows nothing
// about resource ownership.
type SessionManager struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	secret   []byte
	ttl      time.Duration
	locks    *keyLock
	now      func() time.Time
}

// NewSessionManager creates a SessionManager storing sessions in sessions and
// signing client tokens with secret.
func NewSessionManager(users domain.UserRepository, sessions domain.SessionRepository, secret []byte, ttl time.Duration) *SessionManager {
	return &SessionManager{
		users:    users,
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
		locks:    newKeyLock(),
		now:      time.Now,
	}
}

// TTL returns the lifetime of new sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Establish creates a new session for userID. version is the SessionVersion
// the caller saw when it verified the user's credentials; if sessions were
// revoked since then the login is refused with ErrUnauthorized.
func (m *SessionManager) Establish(ctx context.Context, userID, version int64, client ClientInfo) (SessionHandle, error) {
	unlock := m.locks.Lock(userLockKey(userID))
	defer unlock()

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return SessionHandle{}, domain.Internal("load user", err)
	}
	if user == nil {
		return SessionHandle{}, domain.ErrNotFound
	}
	if user.SessionVersion != version {
		return SessionHandle{}, domain.ErrUnauthorized
	}

	now := m.now().UTC()
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Version:   user.SessionVersion,
		UserAgent: client.UserAgent,
		IP:        client.IP,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return SessionHandle{}, domain.Internal("create session", err)
	}

	token, err := auth.GenerateToken(s.ID, m.secret, now, s.ExpiresAt)
	if err != nil {
		return SessionHandle{}, domain.Internal("sign session token", err)
	}
	return SessionHandle{Token: token, ExpiresAt: s.ExpiresAt}, nil
}

// Resolve returns the session the token refers to, or nil when the token is
// empty, malformed, expired, presented by another user agent, or issued
// before the user's sessions were revoked. Only storage failures are errors.
func (m *SessionManager) Resolve(ctx context.Context, token string, client ClientInfo) (*UserSession, error) {
	if token == "" {
		return nil, nil
	}
	id, err := auth.SessionIDFromToken(token, m.secret)
	if err != nil {
		return nil, nil
	}

	s, err := m.sessions.Get(ctx, id)
	if err != nil {
		return nil, domain.Internal("load session", err)
	}
	if s == nil {
		return nil, nil
	}
	if !m.now().Before(s.ExpiresAt) || s.UserAgent != client.UserAgent {
		return nil, m.drop(ctx, id)
	}

	user, err := m.users.GetByID(ctx, s.UserID)
	if err != nil {
		return nil, domain.Internal("load user", err)
	}
	if user == nil || user.SessionVersion != s.Version {
		return nil, m.drop(ctx, id)
	}

	return &UserSession{SessionID: s.ID, UserID: s.UserID, ExpiresAt: s.ExpiresAt}, nil
}

// Invalidate removes the session the token refers to. Unknown or malformed
// tokens are ignored.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	id, err := auth.SessionIDFromToken(token, m.secret)
	if err != nil {
		return nil
	}
	return m.drop(ctx, id)
}

// InvalidateUser removes every session of userID.
func (m *SessionManager) InvalidateUser(ctx context.Context, userID int64) error {
	unlock := m.locks.Lock(userLockKey(userID))
	defer unlock()

	if err := m.sessions.DeleteByUser(ctx, userID); err != nil {
		return domain.Internal("delete user sessions", err)
	}
	return nil
}

// PurgeExpired deletes expired sessions from the store.
func (m *SessionManager) PurgeExpired(ctx context.Context) error {
	if err := m.sessions.DeleteExpired(ctx); err != nil {
		return domain.Internal("delete expired sessions", err)
	}
	return nil
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration, log logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.PurgeExpired(ctx); err != nil {
				log.Warn(ctx, "purge expired sessions", "error", err)
			}
		}
	}
}

func (m *SessionManager) drop(ctx context.Context, id string) error {
	if err := m.sessions.Delete(ctx, id); err != nil {
		return domain.Internal("delete session", err)
	}
	return nil
}

func userLockKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
