package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"passforge/internal/domain"
	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
)

// EventsHandler streams reconciled auth states as Server-Sent Events.
type EventsHandler struct {
	uc        *usecase.GetAuthState
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(uc *usecase.GetAuthState, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &EventsHandler{uc: uc, heartbeat: heartbeat}
}

// Handle keeps the stream open until the client disconnects, writing one
// auth_state event per recomputed state.
func (h *EventsHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	flusher, canFlush := c.Response().Writer.(http.Flusher)
	if !canFlush {
		slog.ErrorContext(ctx, "response writer doesn't support flushing")
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	watcher, _ := h.uc.Watch(ctx, sessionCookie(c))
	defer watcher.Close()

	// latest state wins when the client is slower than the updates
	updates := make(chan domain.AuthState, 1)
	unsubscribe := watcher.Subscribe(func(s domain.AuthState) {
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer unsubscribe()

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	if err := writeStateEvent(c, flusher, watcher.State()); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "auth state stream closed by client")
			return nil

		case state := <-updates:
			if err := writeStateEvent(c, flusher, state); err != nil {
				slog.InfoContext(ctx, "client disconnected during auth state event", "error", err)
				return nil
			}

		case <-heartbeat.C:
			if _, err := c.Response().Write([]byte(": heartbeat\n\n")); err != nil {
				slog.InfoContext(ctx, "client disconnected during heartbeat", "error", err)
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeStateEvent(c echo.Context, flusher http.Flusher, state domain.AuthState) error {
	data, err := json.Marshal(newAuthStateResponse(state))
	if err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("event: auth_state\ndata: " + string(data) + "\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
