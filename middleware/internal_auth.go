package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// InternalAuthHeader carries the shared secret on internal routes.
const InternalAuthHeader = "X-Internal-Auth"

// InternalAuth creates middleware that validates a shared secret for internal endpoints.
// An empty configured secret rejects every request.
func InternalAuth(sharedSecret string) echo.MiddlewareFunc {
	secretBytes := []byte(sharedSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(secretBytes) == 0 {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "internal auth not configured")
			}
			provided := []byte(c.Request().Header.Get(InternalAuthHeader))
			if len(provided) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing internal auth header")
			}
			if subtle.ConstantTimeCompare(provided, secretBytes) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid internal auth")
			}
			return next(c)
		}
	}
}
