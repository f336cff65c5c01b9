package handler

import (
	"context"
	"errors"
	"net/http"

	"passforge/internal/domain"
	"passforge/utils/validator"

	"github.com/labstack/echo/v4"
)

// mapDomainError converts a domain error into an appropriate echo.HTTPError.
func mapDomainError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrSessionSubscription):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session source unavailable")

	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrAuthFailed),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionInactive),
		errors.Is(err, domain.ErrMissingIdentity),
		errors.Is(err, domain.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

	case errors.Is(err, domain.ErrKratosUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "identity provider unavailable")

	case errors.Is(err, domain.ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")

	case errors.Is(err, domain.ErrProfileValidation):
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
				"message": "profile validation failed",
				"errors":  verr.Errors,
			})
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "profile validation failed")

	case errors.Is(err, domain.ErrProfileFetch),
		errors.Is(err, domain.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "profile store unavailable")

	case errors.Is(err, domain.ErrProfileDisabled),
		errors.Is(err, domain.ErrInvalidSessionEvent):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")

	case errors.Is(err, domain.ErrCSRFInvalid):
		return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")

	case errors.Is(err, domain.ErrTokenGeneration),
		errors.Is(err, domain.ErrCSRFSecretMissing):
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation error")

	case errors.Is(err, domain.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")

	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "auth state did not settle in time")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// errorKind classifies err for API consumers.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionSubscription):
		return "session_subscription"
	case domain.IsSessionError(err):
		return "session"
	case errors.Is(err, domain.ErrProfileValidation):
		return "profile_validation"
	case domain.IsProfileError(err):
		return "profile_fetch"
	default:
		return "unknown"
	}
}
