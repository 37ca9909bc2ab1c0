package auth

import "errors"

// Sentinel errors returned by token verification and the role policy.
// Handlers map ErrUnauthorized to 401 and ErrForbidden to 403.
var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
)
