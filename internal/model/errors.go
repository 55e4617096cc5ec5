package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")

	// Token related errors
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrInvalidTokenType = errors.New("invalid token type")

	// Message related errors
	ErrInvalidRecipient = errors.New("invalid sender or receiver")
	ErrEmptyContent     = errors.New("message content cannot be empty")
	ErrContentTooLong   = errors.New("message content too long")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Upstream service errors
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
