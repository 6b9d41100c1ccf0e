package domain

import (
	"context"
	"time"
)

// PasswordResetToken is a single-use credential issued out of band so a user
// can set a new password without an active session.
type PasswordResetToken struct {
	ID                    string
	Email                 string
	TemporaryPasswordHash string
	Attempts              int
	ExpiresAt             time.Time
	ConsumedAt            *time.Time
	CreatedAt             time.Time
}

// Consumed reports whether the token can no longer be used.
func (t *PasswordResetToken) Consumed() bool {
	return t.ConsumedAt != nil
}

// PasswordTokenRepository is the port for password reset tokens.
type PasswordTokenRepository interface {
	Create(ctx context.Context, t *PasswordResetToken) error
	// GetForUpdate looks the token up by (email, id) and locks it until the
	// surrounding transaction ends. It returns nil, nil when absent.
	GetForUpdate(ctx context.Context, email, id string) (*PasswordResetToken, error)
	// Update persists Attempts and ConsumedAt.
	Update(ctx context.Context, t *PasswordResetToken) error
}
