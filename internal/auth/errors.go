package auth

import "errors"

var (
	// ErrTokenMissing is returned when a request carries no token.
	ErrTokenMissing = errors.New("auth: token missing")

	// ErrTokenInvalid is returned for tokens that fail signature, expiry
	// or claim checks.
	ErrTokenInvalid = errors.New("auth: invalid token")
)
