package handler

import (
	"errors"
	"net/http"

	"passforge/internal/domain"
	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ValidateHandler handles /validate endpoint for nginx auth_request.
type ValidateHandler struct {
	uc *usecase.GetAuthState
}

// NewValidateHandler creates a new validate handler.
func NewValidateHandler(uc *usecase.GetAuthState) *ValidateHandler {
	return &ValidateHandler{uc: uc}
}

// Handle answers 200 with identity headers only for an authenticated state.
func (h *ValidateHandler) Handle(c echo.Context) error {
	cookie := sessionCookie(c)
	if cookie == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "session cookie not found")
	}

	result, err := h.uc.Execute(c.Request().Context(), cookie)
	if err != nil {
		return mapDomainError(err)
	}

	state := result.State
	if !state.IsAuthenticated {
		if errors.Is(state.Err, domain.ErrKratosUnavailable) {
			return mapDomainError(state.Err)
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	tagRequest(c, state.Session)
	h.setIdentityHeaders(c, state.User, result.BackendToken)
	return c.NoContent(http.StatusOK)
}

func (h *ValidateHandler) setIdentityHeaders(c echo.Context, user *domain.AuthUser, token string) {
	header := c.Response().Header()
	header.Set("X-PassForge-User-Id", user.UserID)
	header.Set("X-PassForge-User-Email", user.Email)
	header.Set("X-PassForge-User-Role", user.Role)
	if token != "" {
		header.Set(BackendTokenHeader, token)
	}
}
