package domain

import (
	"context"
	"time"
)

// Session represents an active user session.
type Session struct {
	ID        string
	UserID    int64
	Version   int64
	UserAgent string
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository defines the port for session persistence. Implementations
// must be safe for concurrent use; every method is atomic on its own.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	// Get returns nil, nil when the session does not exist or has expired.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	// DeleteByUser removes every session of the user. It is idempotent.
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) error
}
