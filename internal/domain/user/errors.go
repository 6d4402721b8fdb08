package user

import "errors"

var (
	// ErrDuplicateUsername is returned by a store when the unique username index rejects an insert.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound is returned by a store when no user matches a lookup by ID.
	ErrNotFound = errors.New("user not found")
)
