// Package domain contains the core business entities and the ports the
// adapters implement.
package domain

import (
	"context"
	"time"
)

// User is a registered account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	PublicKey    string
	AvatarURL    *string
	// SessionVersion is bumped whenever existing sessions must stop
	// resolving, e.g. after a password reset.
	SessionVersion int64
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// UserUpdate carries the optional fields of a profile update. Nil fields are
// left untouched.
type UserUpdate struct {
	Name         *string
	PasswordHash *string
	AvatarURL    *string
}

// UserRepository is the port for user persistence. Getters return nil, nil
// when the user does not exist.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Create stores u and returns its new id. It returns ErrConflict when the
	// email or public key is already registered.
	Create(ctx context.Context, u *User) (int64, error)
	Update(ctx context.Context, id int64, upd UserUpdate) (bool, error)
	// SetPassword replaces the password hash and increments SessionVersion.
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	// Delete removes the user together with the posts they own.
	Delete(ctx context.Context, id int64) (bool, error)
}

// SignUpToken proves possession of an email address during registration.
type SignUpToken struct {
	Key          string
	Pin          string
	Name         string
	Email        string
	PasswordHash string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// SignUpTokenRepository is the port for pending registrations.
type SignUpTokenRepository interface {
	Create(ctx context.Context, t *SignUpToken) error
	// GetForUpdate returns the token and locks it until the surrounding
	// transaction ends. It returns nil, nil when the key is unknown.
	GetForUpdate(ctx context.Context, key string) (*SignUpToken, error)
	Delete(ctx context.Context, key string) error
}

// AvatarUpload is a presigned upload target for a profile picture.
type AvatarUpload struct {
	UploadURL string    `json:"upload_url"`
	AvatarURL string    `json:"avatar_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AvatarStorage presigns avatar uploads in object storage.
type AvatarStorage interface {
	PresignAvatarUpload(ctx context.Context, userID int64) (*AvatarUpload, error)
}
