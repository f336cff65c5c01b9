package handler

import (
	"net/http"

	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
)

// BackendTokenHeader carries the backend JWT of an authenticated state.
const BackendTokenHeader = "X-PassForge-Backend-Token"

// SessionHandler handles /session endpoint returning the reconciled auth
// state as JSON for the frontend.
type SessionHandler struct {
	uc *usecase.GetAuthState
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(uc *usecase.GetAuthState) *SessionHandler {
	return &SessionHandler{uc: uc}
}

// Handle processes the /session endpoint. A signed-out or failed state is
// still a 200 response; the body says why the user is not authenticated.
func (h *SessionHandler) Handle(c echo.Context) error {
	result, err := h.uc.Execute(c.Request().Context(), sessionCookie(c))
	if err != nil {
		return mapDomainError(err)
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	if result.BackendToken != "" {
		c.Response().Header().Set(BackendTokenHeader, result.BackendToken)
	}

	return c.JSON(http.StatusOK, newAuthStateResponse(result.State))
}
