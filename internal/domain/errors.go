package domain

import "errors"

// Session errors.
var (
	ErrSessionSubscription = errors.New("session subscription failed")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrSessionInactive     = errors.New("session is not active")
	ErrMissingIdentity     = errors.New("missing identity in session")
	ErrUnauthenticated     = errors.New("not authenticated")
	ErrInvalidSessionEvent = errors.New("invalid session event")
)

// Profile errors.
var (
	ErrProfileFetch      = errors.New("profile fetch failed")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrProfileValidation = errors.New("profile validation failed")
	ErrProfileDisabled   = errors.New("profile lookup requires a user id")
)

// Token errors.
var (
	ErrTokenGeneration   = errors.New("token generation failed")
	ErrCSRFSecretMissing = errors.New("CSRF secret not configured")
	ErrCSRFInvalid       = errors.New("CSRF token invalid")
)

// External service errors.
var (
	ErrKratosUnavailable = errors.New("identity provider unavailable")
	ErrStoreUnavailable  = errors.New("profile store unavailable")
)

// Rate limiting errors.
var (
	ErrRateLimited = errors.New("rate limit exceeded")
)

// IsSessionError reports whether err originates from session resolution.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrSessionSubscription) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrSessionInactive) ||
		errors.Is(err, ErrMissingIdentity) ||
		errors.Is(err, ErrKratosUnavailable)
}

// IsProfileError reports whether err originates from the profile source.
func IsProfileError(err error) bool {
	return errors.Is(err, ErrProfileFetch) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrProfileValidation) ||
		errors.Is(err, ErrProfileDisabled)
}
