package middleware

import (
	"passforge/utils/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestID propagates an inbound X-Request-ID or assigns a new UUID, echoes
// it on the response and stores it in the request context for logging.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}

			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
			return next(c)
		}
	}
}
