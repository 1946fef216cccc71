package storage

import "errors"

// Sentinel errors shared by every backend. Callers branch with errors.Is;
// backends wrap these with whatever detail they have.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an existing
	// key. Outcomes, violations and adjustment records are append-only, so
	// for them a duplicate is final, never a retry.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record fails validation before it
	// reaches the backend.
	ErrInvalidInput = errors.New("invalid input")
)
