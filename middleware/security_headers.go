package middleware

import "github.com/labstack/echo/v4"

// SecurityHeaders sets the response policy for auth-state endpoints. Every
// answer depends on the session cookie, so nothing may be cached or shared
// across origins. Handlers may relax Cache-Control afterwards (SSE).
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set(echo.HeaderCacheControl, "no-store")
			h.Set("Pragma", "no-cache")
			h.Add(echo.HeaderVary, "Cookie")
			return next(c)
		}
	}
}
