package app

import (
	"time"

	"darim/internal/domain"
)

// UserSession is the identity a request resolved to.
type UserSession struct {
	SessionID string
	UserID    int64
	ExpiresAt time.Time
}

// Authorize allows the caller to act on a resource owned by ownerID. It fails
// with domain.ErrUnauthorized when there is no session or the session belongs
// to someone else, and returns the verified user id otherwise.
func Authorize(session *UserSession, ownerID int64) (int64, error) {
	if session == nil {
		return 0, domain.ErrUnauthorized
	}
	if session.UserID != ownerID {
		return 0, domain.ErrUnauthorized
	}
	return session.UserID, nil
}

// requireSession is the identity check for operations that create resources
// or list the caller's own ones, where no foreign owner exists yet.
func requireSession(session *UserSession) (int64, error) {
	if session == nil {
		return 0, domain.ErrUnauthorized
	}
	return session.UserID, nil
}
