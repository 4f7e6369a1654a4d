// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/transport layers.
var (
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is returned for an unknown email and for a wrong master password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates a malformed token or a signature that does not validate.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired indicates a well-formed token past its expiry.
	ErrExpired = errors.New("token expired")

	// ErrUnauthorized indicates a request without any session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated identity lacking the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested user or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDecryption indicates a stored blob that is malformed or fails authentication.
	ErrDecryption = errors.New("decryption failed")

	// ErrExternalService indicates a breach or URL reputation lookup that could not complete.
	ErrExternalService = errors.New("external service unavailable")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
