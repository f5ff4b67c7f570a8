package auth

import "errors"

var (
	// ErrUserNotFound indicates no account matched the lookup.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrUserExists indicates the email address is already registered.
	ErrUserExists = errors.New("auth: email already registered")

	// ErrInvalidCredentials indicates a failed email/password check.
	// Deliberately does not distinguish unknown email from wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid indicates a JWT that failed signature, expiry, or
	// claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("auth: invalid email address")

	// ErrInvalidRole indicates an unrecognised account role.
	ErrInvalidRole = errors.New("auth: invalid role")
)
