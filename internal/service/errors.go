package service

import "errors"

var (
	// ErrInvalidOrExpiredToken is returned when a presented refresh token is
	// absent, expired, revoked, or already rotated. Callers must treat it as
	// "re-login required".
	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")

	// ErrUserNotFound is returned when a refresh token is valid but its
	// owning user is missing or soft-deleted. The HTTP boundary collapses it
	// into the same unauthenticated response as ErrInvalidOrExpiredToken.
	ErrUserNotFound = errors.New("user not found")
)
