// Package lognotify writes token notices to the log. It is meant for local
// development where no mail pipeline runs.
package lognotify

import (
	"context"

	"darim/internal/domain"
	"darim/internal/logging"
)

var _ domain.Notifier = Notifier{}

// Notifier logs notices at info level, secrets included.
type Notifier struct {
	Log logging.Logger
}

func (n Notifier) SignUpTokenIssued(ctx context.Context, notice domain.SignUpNotice) error {
	n.Log.Info(ctx, "sign-up token issued",
		"email", notice.Email,
		"pin", notice.Pin,
		"expires_at", notice.ExpiresAt)
	return nil
}

func (n Notifier) PasswordTokenIssued(ctx context.Context, notice domain.PasswordResetNotice) error {
	n.Log.Info(ctx, "password token issued",
		"email", notice.Email,
		"token_id", notice.TokenID,
		"temporary_password", notice.TemporaryPassword,
		"expires_at", notice.ExpiresAt)
	return nil
}
