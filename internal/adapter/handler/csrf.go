package handler

import (
	"log/slog"
	"net/http"

	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
)

// CSRFHeader carries the CSRF token on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

// CSRFHandler handles CSRF token requests.
type CSRFHandler struct {
	uc *usecase.GenerateCSRF
}

// NewCSRFHandler creates a new CSRF handler.
func NewCSRFHandler(uc *usecase.GenerateCSRF) *CSRFHandler {
	return &CSRFHandler{uc: uc}
}

// csrfResponse represents the CSRF token response.
type csrfResponse struct {
	Data struct {
		CSRFToken string `json:"csrf_token"`
	} `json:"data"`
}

// Handle processes CSRF token requests.
func (h *CSRFHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	cookie := sessionCookie(c)
	if cookie == "" {
		slog.WarnContext(ctx, "csrf token request without session cookie")
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "session cookie required",
		})
	}

	token, err := h.uc.Execute(ctx, cookie)
	if err != nil {
		return mapDomainError(err)
	}

	slog.InfoContext(ctx, "csrf token generated")

	resp := csrfResponse{}
	resp.Data.CSRFToken = token
	return c.JSON(http.StatusOK, resp)
}
