package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"passforge/internal/domain"
	"passforge/utils/validator"

	"github.com/stretchr/testify/assert"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"session subscription", domain.ErrSessionSubscription, http.StatusServiceUnavailable},
		{"session not found", domain.ErrSessionNotFound, http.StatusUnauthorized},
		{"auth failed", domain.ErrAuthFailed, http.StatusUnauthorized},
		{"session expired", domain.ErrSessionExpired, http.StatusUnauthorized},
		{"session inactive", domain.ErrSessionInactive, http.StatusUnauthorized},
		{"missing identity", domain.ErrMissingIdentity, http.StatusUnauthorized},
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized},
		{"kratos unavailable", domain.ErrKratosUnavailable, http.StatusBadGateway},
		{"profile not found", fmt.Errorf("%w: %w", domain.ErrProfileFetch, domain.ErrProfileNotFound), http.StatusNotFound},
		{"profile validation", domain.ErrProfileValidation, http.StatusUnprocessableEntity},
		{"profile fetch", domain.ErrProfileFetch, http.StatusServiceUnavailable},
		{"store unavailable", domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"invalid session event", domain.ErrInvalidSessionEvent, http.StatusBadRequest},
		{"csrf invalid", domain.ErrCSRFInvalid, http.StatusForbidden},
		{"token generation", domain.ErrTokenGeneration, http.StatusInternalServerError},
		{"csrf secret missing", domain.ErrCSRFSecretMissing, http.StatusInternalServerError},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown error", errors.New("something unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := mapDomainError(tt.err)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestMapDomainError_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", domain.ErrAuthFailed)
	httpErr := mapDomainError(wrapped)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	doubleWrapped := fmt.Errorf("outer: %w", wrapped)
	httpErr2 := mapDomainError(doubleWrapped)
	assert.Equal(t, http.StatusUnauthorized, httpErr2.Code)
}

func TestMapDomainError_ValidationDetails(t *testing.T) {
	verr := &validator.ValidationError{Errors: map[string]string{"bio": "bio must be at most 500 characters long"}}
	httpErr := mapDomainError(fmt.Errorf("%w: %w", domain.ErrProfileValidation, verr))

	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
	body, ok := httpErr.Message.(map[string]any)
	if assert.True(t, ok) {
		assert.Equal(t, verr.Errors, body["errors"])
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "session_subscription", errorKind(domain.ErrSessionSubscription))
	assert.Equal(t, "session", errorKind(domain.ErrAuthFailed))
	assert.Equal(t, "profile_validation", errorKind(domain.ErrProfileValidation))
	assert.Equal(t, "profile_fetch", errorKind(fmt.Errorf("%w: timeout", domain.ErrProfileFetch)))
	assert.Equal(t, "unknown", errorKind(errors.New("boom")))
}
