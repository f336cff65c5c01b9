package handler

import (
	"log/slog"
	"net/http"

	"passforge/internal/domain"
	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ProfileHandler serves the signed-in user's profile.
type ProfileHandler struct {
	auth   *usecase.GetAuthState
	csrf   *usecase.GenerateCSRF
	update *usecase.UpdateProfile
	remove *usecase.DeleteProfile
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(
	auth *usecase.GetAuthState,
	csrf *usecase.GenerateCSRF,
	update *usecase.UpdateProfile,
	remove *usecase.DeleteProfile,
) *ProfileHandler {
	return &ProfileHandler{auth: auth, csrf: csrf, update: update, remove: remove}
}

// Get returns the profile of an authenticated user.
func (h *ProfileHandler) Get(c echo.Context) error {
	state, err := h.auth.Resolve(c.Request().Context(), sessionCookie(c))
	if err != nil {
		return mapDomainError(err)
	}
	if !state.IsAuthenticated {
		if state.Err != nil {
			return mapDomainError(state.Err)
		}
		return mapDomainError(domain.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, state.Profile)
}

// Update applies the editable fields of the request body. A user whose
// profile does not exist yet gets one.
func (h *ProfileHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	state, err := h.signedIn(c)
	if err != nil {
		return err
	}

	var input domain.ProfileUpdate
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	profile, err := h.update.Execute(ctx, state, input)
	if err != nil {
		slog.WarnContext(ctx, "profile update rejected", "user_id", state.Session.UserID, "error", err)
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// Delete removes the user's profile.
func (h *ProfileHandler) Delete(c echo.Context) error {
	state, err := h.signedIn(c)
	if err != nil {
		return err
	}

	if err := h.remove.Execute(c.Request().Context(), state); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// signedIn resolves a state with a usable session and checks the CSRF token
// bound to it.
func (h *ProfileHandler) signedIn(c echo.Context) (domain.AuthState, error) {
	state, err := h.auth.Resolve(c.Request().Context(), sessionCookie(c))
	if err != nil {
		return state, mapDomainError(err)
	}
	if state.Session == nil || domain.IsSessionError(state.Err) {
		if state.Err != nil {
			return state, mapDomainError(state.Err)
		}
		return state, mapDomainError(domain.ErrUnauthenticated)
	}

	if err := h.csrf.Verify(state.Session.SessionID, c.Request().Header.Get(CSRFHeader)); err != nil {
		slog.WarnContext(c.Request().Context(), "csrf verification failed", "user_id", state.Session.UserID)
		return state, mapDomainError(err)
	}
	tagRequest(c, state.Session)
	return state, nil
}
