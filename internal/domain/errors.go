package domain

import (
	"errors"
	"fmt"
)

// Service error taxonomy. Every service operation returns one of these
// (possibly wrapped) so the driving adapters can map them without knowing
// anything about storage.
var (
	// ErrUnauthorized indicates a missing session, an owner mismatch or a
	// failed credential check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the requested user, post or token does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired indicates a token past its validity window.
	ErrExpired = errors.New("expired")
	// ErrInvalidToken indicates a token that was already consumed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrConflict indicates a uniqueness violation, e.g. a reused public key.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument indicates malformed or missing input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInternal indicates a storage or otherwise unexpected failure.
	ErrInternal = errors.New("internal error")
)

// Internal wraps a storage failure so it matches ErrInternal while keeping
// the cause available for logging.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
