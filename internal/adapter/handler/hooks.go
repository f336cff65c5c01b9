package handler

import (
	"net/http"

	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
)

// HooksHandler receives session transitions from the identity provider.
type HooksHandler struct {
	uc *usecase.IngestSessionEvent
}

// NewHooksHandler creates a new hooks handler.
func NewHooksHandler(uc *usecase.IngestSessionEvent) *HooksHandler {
	return &HooksHandler{uc: uc}
}

type hookResponse struct {
	Delivered int `json:"delivered"`
}

// HandleSession ingests one session hook.
func (h *HooksHandler) HandleSession(c echo.Context) error {
	var hook usecase.SessionHook
	if err := c.Bind(&hook); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	delivered, err := h.uc.Execute(c.Request().Context(), hook)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusAccepted, hookResponse{Delivered: delivered})
}
