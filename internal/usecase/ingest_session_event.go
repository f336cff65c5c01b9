package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"passforge/internal/domain"
)

// SessionHook is an auth transition reported by the identity provider.
type SessionHook struct {
	Event     domain.SessionEventKind `json:"event" validate:"required"`
	SessionID string                  `json:"session_id"`
	UserID    string                  `json:"user_id"`
	Email     string                  `json:"email"`
	Traits    map[string]any          `json:"traits"`
}

// IngestSessionEvent applies provider hooks to the caches and the session bus.
type IngestSessionEvent struct {
	cache    domain.SessionCache
	profiles domain.ProfileSource
	bus      domain.SessionPublisher
	logger   *slog.Logger
}

// NewIngestSessionEvent creates a new IngestSessionEvent usecase.
func NewIngestSessionEvent(c domain.SessionCache, profiles domain.ProfileSource, bus domain.SessionPublisher, l *slog.Logger) *IngestSessionEvent {
	return &IngestSessionEvent{cache: c, profiles: profiles, bus: bus, logger: l}
}

// Execute evicts stale cache entries and publishes the transition. It
// returns the number of listeners reached.
func (uc *IngestSessionEvent) Execute(ctx context.Context, hook SessionHook) (int, error) {
	if !hook.Event.Valid() || hook.Event == domain.SessionInitial {
		return 0, fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidSessionEvent, hook.Event)
	}
	if hook.SessionID == "" && hook.UserID == "" {
		return 0, fmt.Errorf("%w: %q names neither session nor user", domain.ErrInvalidSessionEvent, hook.Event)
	}

	evicted := uc.cache.EvictSession(hook.SessionID)

	if hook.Event == domain.SessionUserUpdated && hook.UserID != "" {
		uc.profiles.Invalidate(hook.UserID)
	}

	event := domain.SessionEvent{Kind: hook.Event}
	if hook.Event != domain.SessionSignedOut && hook.UserID != "" && hook.SessionID != "" {
		event.Session = &domain.Session{
			UserID:      hook.UserID,
			Email:       hook.Email,
			SessionID:   hook.SessionID,
			RawMetadata: hook.Traits,
		}
	}

	var delivered int
	if hook.SessionID != "" {
		delivered = uc.bus.Publish(hook.SessionID, event)
	} else {
		delivered = uc.bus.PublishUser(hook.UserID, event)
	}

	uc.logger.InfoContext(ctx, "session hook ingested",
		"event", hook.Event,
		"session_id", hook.SessionID,
		"user_id", hook.UserID,
		"evicted", evicted,
		"delivered", delivered)
	return delivered, nil
}
