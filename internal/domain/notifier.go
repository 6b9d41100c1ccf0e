package domain

import (
	"context"
	"time"
)

// SignUpNotice carries the pin a registrant must echo back.
type SignUpNotice struct {
	Name      string
	Email     string
	Pin       string
	ExpiresAt time.Time
}

// PasswordResetNotice carries the reset token and temporary password.
type PasswordResetNotice struct {
	Email             string
	TokenID           string
	TemporaryPassword string
	ExpiresAt         time.Time
}

// Notifier delivers secrets out of band, typically by email.
type Notifier interface {
	SignUpTokenIssued(ctx context.Context, n SignUpNotice) error
	PasswordTokenIssued(ctx context.Context, n PasswordResetNotice) error
}
