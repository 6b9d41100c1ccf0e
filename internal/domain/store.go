package domain

import "context"

// Store groups the credential and resource repositories behind a single
// transaction boundary.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	PasswordTokens() PasswordTokenRepository
	SignUpTokens() SignUpTokenRepository
	// WithinTx runs fn against a transactional view of the store. Nothing fn
	// wrote is visible to others unless it returns nil and the commit
	// succeeds. Calling WithinTx on a transactional view runs fn in the same
	// transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
