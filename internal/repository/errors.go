package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateProviderUser is returned when a (provider, provider_id)
	// pair already exists
	ErrDuplicateProviderUser = errors.New("user for this provider identity already exists")

	// ErrDuplicateToken is returned when trying to create a refresh token
	// whose value collides with an existing one
	ErrDuplicateToken = errors.New("token value already exists")
)
