// Package app holds the application services and business logic.
package app

import (
	"context"
	"strings"

	"darim/internal/domain"
)

// AuthService handles login and logout.
type AuthService struct {
	users    domain.UserRepository
	sessions *SessionManager
	creds    Credentials

	// dummyHash is compared against when the email is unknown, so both
	// branches of Login cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions *SessionManager, creds Credentials) *AuthService {
	dummy, _ := creds.Hash("darim-unknown-user")
	return &AuthService{
		users:     users,
		sessions:  sessions,
		creds:     creds,
		dummyHash: dummy,
	}
}

// Login authenticates a user by email and password and creates a session.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (SessionHandle, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return SessionHandle{}, domain.Internal("load user", err)
	}
	if user == nil {
		s.creds.Verify(s.dummyHash, password)
		return SessionHandle{}, domain.ErrUnauthorized
	}
	if !s.creds.Verify(user.PasswordHash, password) {
		return SessionHandle{}, domain.ErrUnauthorized
	}
	return s.sessions.Establish(ctx, user.ID, user.SessionVersion, client)
}

// LoginWithEmail creates a session for an identity already verified by an
// external provider (SSO). Accounts are never provisioned here.
func (s *AuthService) LoginWithEmail(ctx context.Context, email string, client ClientInfo) (SessionHandle, error) {
	if email == "" {
		return SessionHandle{}, domain.ErrUnauthorized
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return SessionHandle{}, domain.Internal("load user", err)
	}
	if user == nil {
		return SessionHandle{}, domain.ErrUnauthorized
	}
	return s.sessions.Establish(ctx, user.ID, user.SessionVersion, client)
}

// Logout invalidates a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Invalidate(ctx, token)
}
