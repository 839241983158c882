package domain

import "errors"

var (
	// ErrUnsupportedProvider is returned when an account names a provider with no implementation.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a create would violate a natural-key uniqueness constraint.
	ErrAlreadyExists = errors.New("already exists")
)
