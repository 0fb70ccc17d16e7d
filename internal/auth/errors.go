package auth

import "errors"

var (
	// ErrAuth is returned when the identity provider rejects a login or a
	// login cannot be completed (state mismatch, missing verifier, error
	// redirect).
	ErrAuth = errors.New("authentication failed")

	// ErrUnauthorized is returned when there is no authorized session, or
	// when the signed-in account is not the allowed one.
	ErrUnauthorized = errors.New("not authorized")
)
