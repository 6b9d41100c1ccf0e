package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"darim/internal/domain"
)

type userRepo struct {
	q DBTX
}

const userColumns = "id, name, email, password_hash, public_key, avatar_url, session_version, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u       domain.User
		avatar  sql.NullString
		updated sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.PublicKey, &avatar, &u.SessionVersion, &u.CreatedAt, &updated)
	if err != nil {
		return nil, err
	}
	if avatar.Valid {
		u.AvatarURL = &avatar.String
	}
	if updated.Valid {
		u.UpdatedAt = &updated.Time
	}
	return &u, nil
}

// GetByID retrieves a user by ID.
func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetByEmail retrieves a user by email.
func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Create inserts a user and returns its id.
func (r userRepo) Create(ctx context.Context, u *domain.User) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx,
		"INSERT INTO users (name, email, password_hash, public_key, avatar_url, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		u.Name, u.Email, u.PasswordHash, u.PublicKey, u.AvatarURL, u.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

// Update applies the non-nil fields of upd.
func (r userRepo) Update(ctx context.Context, id int64, upd domain.UserUpdate) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET
			name = COALESCE($2, name),
			password_hash = COALESCE($3, password_hash),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = $5
		WHERE id = $1`,
		id, upd.Name, upd.PasswordHash, upd.AvatarURL, time.Now().UTC(),
	)
	if err != nil {
		return false, mapError(err)
	}
	return rowsAffected(res)
}

// SetPassword replaces the password hash and bumps session_version.
func (r userRepo) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE users SET password_hash = $2, session_version = session_version + 1, updated_at = $3 WHERE id = $1",
		id, passwordHash, time.Now().UTC(),
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

// Delete removes the user. Posts and sessions cascade.
func (r userRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}
