package service

import "errors"

// Error kinds. Every authentication failure satisfies
// errors.Is(err, ErrUnauthorized); duplicate signups satisfy ErrConflict.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad_request")
)

// AuthError is an error with a fixed, client-safe message.
type AuthError struct {
	Kind    error
	Message string
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Kind }

var (
	ErrInvalidCredentials = &AuthError{Kind: ErrUnauthorized, Message: "Credentials are invalid"}
	ErrSessionRevoked     = &AuthError{Kind: ErrUnauthorized, Message: "Session has been revoked"}
	ErrRefreshNotFound    = &AuthError{Kind: ErrUnauthorized, Message: "Refresh token not found"}
	ErrRefreshExpired     = &AuthError{Kind: ErrUnauthorized, Message: "Refresh token has expired"}
	ErrRefreshInvalid     = &AuthError{Kind: ErrUnauthorized, Message: "Refresh token is invalid"}
	ErrEmailExists        = &AuthError{Kind: ErrConflict, Message: "Email already exists"}
)
