package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"darim/internal/domain"
	"darim/internal/logging"
)

const (
	signUpKeyLength = 8
	signUpPinLength = 8
)

// SignUpArgs start a registration.
type SignUpArgs struct {
	Name     string
	Email    string
	Password string
}

// CreateUserArgs complete a registration with the key and the pin delivered
// to the registrant.
type CreateUserArgs struct {
	PublicKey string
	TokenKey  string
	TokenPin  string
}

// UpdateUserArgs are the optional fields of a profile update.
type UpdateUserArgs struct {
	Name      *string
	Password  *string
	AvatarURL *string
}

// ResetPasswordArgs redeem a password reset token.
type ResetPasswordArgs struct {
	Email             string
	TokenID           string
	TemporaryPassword string
	NewPassword       string
}

// UserService encapsulates account use cases.
type UserService struct {
	store     domain.Store
	sessions  *SessionManager
	resets    *PasswordResetService
	notifier  domain.Notifier
	avatars   domain.AvatarStorage
	creds     Credentials
	signUpTTL time.Duration
	log       logging.Logger
	now       func() time.Time
}

// NewUserService creates a UserService. Sign-up tokens live for signUpTTL.
func NewUserService(store domain.Store, sessions *SessionManager, resets *PasswordResetService, notifier domain.Notifier, creds Credentials, signUpTTL time.Duration, log logging.Logger) *UserService {
	return &UserService{
		store:     store,
		sessions:  sessions,
		resets:    resets,
		notifier:  notifier,
		creds:     creds,
		signUpTTL: signUpTTL,
		log:       log,
		now:       time.Now,
	}
}

// WithAvatarStorage enables presigned avatar uploads.
func (s *UserService) WithAvatarStorage(a domain.AvatarStorage) *UserService {
	s.avatars = a
	return s
}

// RequestSignUp stores a pending registration and sends its pin to the
// registrant. It returns the token key the client echoes back on Create.
func (s *UserService) RequestSignUp(ctx context.Context, args SignUpArgs) (string, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" || args.Password == "" {
		return "", domain.ErrInvalidArgument
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(args.Email))
	if err != nil {
		return "", domain.ErrInvalidArgument
	}
	email := addr.Address

	existing, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return "", domain.Internal("load user", err)
	}
	if existing != nil {
		return "", domain.ErrConflict
	}

	key, err := randomCode(signUpKeyLength)
	if err != nil {
		return "", domain.Internal("generate token key", err)
	}
	pin, err := randomCode(signUpPinLength)
	if err != nil {
		return "", domain.Internal("generate token pin", err)
	}
	hash, err := s.creds.Hash(args.Password)
	if err != nil {
		return "", domain.Internal("hash password", err)
	}

	now := s.now().UTC()
	tok := &domain.SignUpToken{
		Key:          key,
		Pin:          pin,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		ExpiresAt:    now.Add(s.signUpTTL),
		CreatedAt:    now,
	}
	if err := s.store.SignUpTokens().Create(ctx, tok); err != nil {
		return "", domain.Internal("create sign-up token", err)
	}

	err = s.notifier.SignUpTokenIssued(ctx, domain.SignUpNotice{
		Name:      name,
		Email:     email,
		Pin:       pin,
		ExpiresAt: tok.ExpiresAt,
	})
	if err != nil {
		if derr := s.store.SignUpTokens().Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn(ctx, "drop undelivered sign-up token", "error", derr)
		}
		return "", domain.Internal("deliver sign-up token", err)
	}
	return key, nil
}

// Create registers a user from a sign-up token and returns the new id. No
// session is required.
func (s *UserService) Create(ctx context.Context, args CreateUserArgs) (int64, error) {
	if strings.TrimSpace(args.PublicKey) == "" || args.TokenKey == "" {
		return 0, domain.ErrInvalidArgument
	}

	var id int64
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		tok, err := tx.SignUpTokens().GetForUpdate(ctx, args.TokenKey)
		if err != nil {
			return domain.Internal("load sign-up token", err)
		}
		if tok == nil {
			return domain.ErrNotFound
		}
		now := s.now().UTC()
		if !now.Before(tok.ExpiresAt) {
			return domain.ErrExpired
		}
		if !ConstantTimeCompare(tok.Pin, args.TokenPin) {
			return domain.ErrUnauthorized
		}

		id, err = tx.Users().Create(ctx, &domain.User{
			Name:         tok.Name,
			Email:        tok.Email,
			PasswordHash: tok.PasswordHash,
			PublicKey:    args.PublicKey,
			CreatedAt:    now,
		})
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		if err != nil {
			return domain.Internal("create user", err)
		}
		if err := tx.SignUpTokens().Delete(ctx, tok.Key); err != nil {
			return domain.Internal("consume sign-up token", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update changes the caller's own profile. A new password is re-hashed.
func (s *UserService) Update(ctx context.Context, session *UserSession, id int64, args UpdateUserArgs) (bool, error) {
	userID, err := Authorize(session, id)
	if err != nil {
		return false, err
	}
	if args.Name == nil && args.Password == nil && args.AvatarURL == nil {
		return false, domain.ErrInvalidArgument
	}

	upd := domain.UserUpdate{AvatarURL: args.AvatarURL}
	if args.Name != nil {
		name := strings.TrimSpace(*args.Name)
		if name == "" {
			return false, domain.ErrInvalidArgument
		}
		upd.Name = &name
	}
	if args.Password != nil {
		if *args.Password == "" {
			return false, domain.ErrInvalidArgument
		}
		hash, err := s.creds.Hash(*args.Password)
		if err != nil {
			return false, domain.Internal("hash password", err)
		}
		upd.PasswordHash = &hash
	}

	ok, err := s.store.Users().Update(ctx, userID, upd)
	if err != nil {
		return false, domain.Internal("update user", err)
	}
	if !ok {
		return false, domain.ErrNotFound
	}
	return true, nil
}

// Delete removes the caller's own account and posts, then ends their
// sessions.
func (s *UserService) Delete(ctx context.Context, session *UserSession, id int64) (bool, error) {
	userID, err := Authorize(session, id)
	if err != nil {
		return false, err
	}

	ok, err := s.store.Users().Delete(ctx, userID)
	if err != nil {
		return false, domain.Internal("delete user", err)
	}
	if !ok {
		return false, domain.ErrNotFound
	}

	// Sessions of a deleted user no longer resolve; this frees them.
	if err := s.sessions.InvalidateUser(context.WithoutCancel(ctx), userID); err != nil {
		s.log.Warn(ctx, "drop sessions of deleted user", "user_id", userID, "error", err)
	}
	return true, nil
}

// AvatarUploadURL presigns an upload of the caller's avatar.
func (s *UserService) AvatarUploadURL(ctx context.Context, session *UserSession, id int64) (*domain.AvatarUpload, error) {
	userID, err := Authorize(session, id)
	if err != nil {
		return nil, err
	}
	if s.avatars == nil {
		return nil, domain.ErrNotFound
	}
	up, err := s.avatars.PresignAvatarUpload(ctx, userID)
	if err != nil {
		return nil, domain.Internal("presign avatar upload", err)
	}
	return up, nil
}

// RequestPasswordReset issues a reset token for email.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	if err := s.resets.IssueToken(ctx, email); err != nil {
		return false, err
	}
	return true, nil
}

// ResetPassword redeems a password reset token.
func (s *UserService) ResetPassword(ctx context.Context, args ResetPasswordArgs) (bool, error) {
	err := s.resets.ResetPassword(ctx, args.Email, args.TokenID, args.TemporaryPassword, args.NewPassword)
	if err != nil {
		return false, err
	}
	return true, nil
}
