// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"darim/internal/adapter/postgres/migrations"
	"darim/internal/domain"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

var (
	_ domain.Store             = (*DB)(nil)
	_ domain.SessionRepository = SessionRepo{}
)

// DB wraps a *sql.DB and implements domain.Store. Inside WithinTx the
// repositories run on the transaction instead.
type DB struct {
	sql  *sql.DB
	q    DBTX
	inTx bool
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := New(s)
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an already opened database without migrating it.
func New(s *sql.DB) *DB {
	return &DB{sql: s, q: s}
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (d *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := gooseUpContext(ctx, d.sql, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (d *DB) Users() domain.UserRepository                   { return userRepo{q: d.q} }
func (d *DB) Posts() domain.PostRepository                   { return postRepo{q: d.q} }
func (d *DB) PasswordTokens() domain.PasswordTokenRepository { return passwordTokenRepo{q: d.q} }
func (d *DB) SignUpTokens() domain.SignUpTokenRepository     { return signUpTokenRepo{q: d.q} }

// Sessions returns a session repository on the same pool.
func (d *DB) Sessions() SessionRepo { return SessionRepo{q: d.sql} }

// WithinTx runs fn in a transaction. Nested calls join the outer one.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if d.inTx {
		return fn(ctx, d)
	}
	return withTx(ctx, d.sql, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &DB{sql: d.sql, q: tx, inTx: true})
	})
}
