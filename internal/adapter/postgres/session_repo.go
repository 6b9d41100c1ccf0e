package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"darim/internal/domain"
)

// SessionRepo stores sessions in the sessions table.
type SessionRepo struct {
	q DBTX
}

// Create inserts a session.
func (r SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, version, user_agent, ip, created_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		s.ID, s.UserID, s.Version, s.UserAgent, s.IP, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	return mapError(err)
}

// Get returns the session unless it is missing or expired.
func (r SessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRowContext(ctx,
		"SELECT id, user_id, version, user_agent, ip, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > $2",
		id, time.Now().UTC(),
	).Scan(&s.ID, &s.UserID, &s.Version, &s.UserAgent, &s.IP, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a session.
func (r SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id)
	return err
}

// DeleteByUser removes every session of a user.
func (r SessionRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = $1", userID)
	return err
}

// DeleteExpired removes all expired sessions.
func (r SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= $1", time.Now().UTC())
	return err
}
