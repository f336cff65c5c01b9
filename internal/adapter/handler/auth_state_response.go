package handler

import (
	"fmt"
	"time"

	"passforge/internal/domain"
	"passforge/utils/logger"

	"github.com/labstack/echo/v4"
)

const sessionCookieName = "ory_kratos_session"

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type sessionInfo struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// authStateResponse is the JSON form of a reconciled auth state.
type authStateResponse struct {
	OK              bool             `json:"ok"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	IsLoading       bool             `json:"isLoading"`
	TimedOut        bool             `json:"timedOut,omitempty"`
	Phase           domain.Phase     `json:"phase"`
	Error           *errorBody       `json:"error,omitempty"`
	Session         *sessionInfo     `json:"session,omitempty"`
	Profile         *domain.Profile  `json:"profile,omitempty"`
	User            *domain.AuthUser `json:"user,omitempty"`
}

func newAuthStateResponse(s domain.AuthState) authStateResponse {
	resp := authStateResponse{
		OK:              s.IsAuthenticated,
		IsAuthenticated: s.IsAuthenticated,
		IsLoading:       s.IsLoading,
		TimedOut:        s.TimedOut,
		Phase:           s.Phase,
		Profile:         s.Profile,
		User:            s.User,
	}
	if s.Err != nil {
		resp.Error = &errorBody{
			Kind:    errorKind(s.Err),
			Message: fmt.Sprint(mapDomainError(s.Err).Message),
		}
	}
	if s.Session != nil {
		resp.Session = &sessionInfo{
			ID:     s.Session.SessionID,
			UserID: s.Session.UserID,
			Email:  s.Session.Email,
		}
		if !s.Session.ExpiresAt.IsZero() {
			expires := s.Session.ExpiresAt
			resp.Session.ExpiresAt = &expires
		}
	}
	return resp
}

// sessionCookie returns the Kratos session cookie value, or "" if absent.
func sessionCookie(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// tagRequest adds the session's user and session ids to the request context
// so later log records carry them.
func tagRequest(c echo.Context, session *domain.Session) {
	if session == nil {
		return
	}
	req := c.Request()
	ctx := logger.WithSessionID(logger.WithUserID(req.Context(), session.UserID), session.SessionID)
	c.SetRequest(req.WithContext(ctx))
}
