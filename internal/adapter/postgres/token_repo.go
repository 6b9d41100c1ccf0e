package postgres

import (
	"context"
	"database/sql"
	"errors"

	"darim/internal/domain"
)

type passwordTokenRepo struct {
	q DBTX
}

// Create stores a password reset token.
func (r passwordTokenRepo) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO password_tokens (id, email, temporary_password_hash, attempts, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		t.ID, t.Email, t.TemporaryPasswordHash, t.Attempts, t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	return mapError(err)
}

// GetForUpdate loads a token and row-locks it for the enclosing transaction.
func (r passwordTokenRepo) GetForUpdate(ctx context.Context, email, id string) (*domain.PasswordResetToken, error) {
	var (
		t        domain.PasswordResetToken
		consumed sql.NullTime
	)
	err := r.q.QueryRowContext(ctx,
		"SELECT id, email, temporary_password_hash, attempts, expires_at, consumed_at, created_at FROM password_tokens WHERE id = $1 AND email = $2 FOR UPDATE",
		id, email,
	).Scan(&t.ID, &t.Email, &t.TemporaryPasswordHash, &t.Attempts, &t.ExpiresAt, &consumed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if consumed.Valid {
		t.ConsumedAt = &consumed.Time
	}
	return &t, nil
}

// Update persists attempts and consumed_at.
func (r passwordTokenRepo) Update(ctx context.Context, t *domain.PasswordResetToken) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE password_tokens SET attempts = $2, consumed_at = $3 WHERE id = $1",
		t.ID, t.Attempts, t.ConsumedAt,
	)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

type signUpTokenRepo struct {
	q DBTX
}

// Create stores a pending registration.
func (r signUpTokenRepo) Create(ctx context.Context, t *domain.SignUpToken) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO signup_tokens (key, pin, name, email, password_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		t.Key, t.Pin, t.Name, t.Email, t.PasswordHash, t.ExpiresAt.UTC(), t.CreatedAt.UTC(),
	)
	return mapError(err)
}

// GetForUpdate loads a pending registration and row-locks it.
func (r signUpTokenRepo) GetForUpdate(ctx context.Context, key string) (*domain.SignUpToken, error) {
	var t domain.SignUpToken
	err := r.q.QueryRowContext(ctx,
		"SELECT key, pin, name, email, password_hash, expires_at, created_at FROM signup_tokens WHERE key = $1 FOR UPDATE",
		key,
	).Scan(&t.Key, &t.Pin, &t.Name, &t.Email, &t.PasswordHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a pending registration.
func (r signUpTokenRepo) Delete(ctx context.Context, key string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM signup_tokens WHERE key = $1", key)
	return err
}
