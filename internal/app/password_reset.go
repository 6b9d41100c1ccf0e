package app

import (
	"context"
	"strings"
	"time"

	"darim/internal/domain"
	"darim/internal/logging"

	"github.com/google/uuid"
)

// maxResetAttempts is the number of wrong temporary passwords after which a
// reset token is burned.
const maxResetAttempts = 5

const temporaryPasswordLength = 8

// PasswordResetService issues and redeems password reset tokens. Redeeming
// does not need a session.
type PasswordResetService struct {
	store    domain.Store
	sessions *SessionManager
	notifier domain.Notifier
	creds    Credentials
	ttl      time.Duration
	locks    *keyLock
	log      logging.Logger
	now      func() time.Time
}

// NewPasswordResetService creates a PasswordResetService whose tokens live
// for ttl.
func NewPasswordResetService(store domain.Store, sessions *SessionManager, notifier domain.Notifier, creds Credentials, ttl time.Duration, log logging.Logger) *PasswordResetService {
	return &PasswordResetService{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		creds:    creds,
		ttl:      ttl,
		locks:    newKeyLock(),
		log:      log,
		now:      time.Now,
	}
}

// IssueToken creates a reset token for the account registered under email
// and hands the temporary password to the notifier.
func (s *PasswordResetService) IssueToken(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.ErrInvalidArgument
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return domain.Internal("load user", err)
	}
	if user == nil {
		return domain.ErrNotFound
	}

	temporary, err := randomCode(temporaryPasswordLength)
	if err != nil {
		return domain.Internal("generate temporary password", err)
	}
	hash, err := s.creds.Hash(temporary)
	if err != nil {
		return domain.Internal("hash temporary password", err)
	}

	now := s.now().UTC()
	tok := &domain.PasswordResetToken{
		ID:                    uuid.NewString(),
		Email:                 user.Email,
		TemporaryPasswordHash: hash,
		ExpiresAt:             now.Add(s.ttl),
		CreatedAt:             now,
	}
	if err := s.store.PasswordTokens().Create(ctx, tok); err != nil {
		return domain.Internal("create password token", err)
	}

	err = s.notifier.PasswordTokenIssued(ctx, domain.PasswordResetNotice{
		Email:             tok.Email,
		TokenID:           tok.ID,
		TemporaryPassword: temporary,
		ExpiresAt:         tok.ExpiresAt,
	})
	if err != nil {
		// The holder never learned the temporary password; burn the token.
		tok.ConsumedAt = &now
		if uerr := s.store.PasswordTokens().Update(context.WithoutCancel(ctx), tok); uerr != nil {
			s.log.Warn(ctx, "burn undelivered password token", "token_id", tok.ID, "error", uerr)
		}
		return domain.Internal("deliver password token", err)
	}
	return nil
}

// ResetPassword redeems the token identified by (email, tokenID) and sets
// newPassword. The token lookup, the checks, the password change and the
// consumption of the token commit together or not at all. On success every
// existing session of the user stops resolving.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, tokenID, temporaryPassword, newPassword string) error {
	if newPassword == "" {
		return domain.ErrInvalidArgument
	}

	unlock := s.locks.Lock(tokenID)
	defer unlock()

	var (
		userID    int64
		verifyErr error
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		tok, err := tx.PasswordTokens().GetForUpdate(ctx, email, tokenID)
		if err != nil {
			return domain.Internal("load password token", err)
		}
		if tok == nil {
			return domain.ErrNotFound
		}
		if tok.Consumed() {
			return domain.ErrInvalidToken
		}
		now := s.now().UTC()
		if !now.Before(tok.ExpiresAt) {
			return domain.ErrExpired
		}

		if !s.creds.Verify(tok.TemporaryPasswordHash, temporaryPassword) {
			// The failed attempt is committed; the caller still sees an error.
			tok.Attempts++
			if tok.Attempts >= maxResetAttempts {
				tok.ConsumedAt = &now
			}
			if err := tx.PasswordTokens().Update(ctx, tok); err != nil {
				return domain.Internal("record failed attempt", err)
			}
			verifyErr = domain.ErrUnauthorized
			return nil
		}

		user, err := tx.Users().GetByEmail(ctx, tok.Email)
		if err != nil {
			return domain.Internal("load user", err)
		}
		if user == nil {
			return domain.ErrNotFound
		}

		hash, err := s.creds.Hash(newPassword)
		if err != nil {
			return domain.Internal("hash password", err)
		}
		if err := tx.Users().SetPassword(ctx, user.ID, hash); err != nil {
			return domain.Internal("set password", err)
		}
		tok.ConsumedAt = &now
		if err := tx.PasswordTokens().Update(ctx, tok); err != nil {
			return domain.Internal("consume password token", err)
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return err
	}
	if verifyErr != nil {
		return verifyErr
	}

	// The committed version bump already makes old sessions unresolvable;
	// this only frees their storage.
	if err := s.sessions.InvalidateUser(context.WithoutCancel(ctx), userID); err != nil {
		s.log.Warn(ctx, "drop sessions after password reset", "user_id", userID, "error", err)
	}
	return nil
}
