package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"passforge/internal/domain"
)

// ValidateSession orchestrates session validation with cache-through strategy.
type ValidateSession struct {
	validator domain.SessionValidator
	cache     domain.SessionCache
	logger    *slog.Logger
}

// NewValidateSession creates a new ValidateSession usecase.
func NewValidateSession(v domain.SessionValidator, c domain.SessionCache, l *slog.Logger) *ValidateSession {
	return &ValidateSession{validator: v, cache: c, logger: l}
}

// Execute validates the session identified by cookieValue.
func (uc *ValidateSession) Execute(ctx context.Context, cookieValue string) (*domain.Session, error) {
	if cookieValue == "" {
		return nil, domain.ErrSessionNotFound
	}

	if cached, found := uc.cache.Get(cookieValue); found {
		return &domain.Session{
			UserID:      cached.UserID,
			Email:       cached.Email,
			SessionID:   cached.SessionID,
			RawMetadata: cached.RawMetadata,
			ExpiresAt:   cached.ExpiresAt,
		}, nil
	}

	// Cache miss: ask Kratos
	fullCookie := fmt.Sprintf("ory_kratos_session=%s", cookieValue)
	session, err := uc.validator.ValidateSession(ctx, fullCookie)
	if err != nil {
		uc.logger.DebugContext(ctx, "session validation failed", "error", err)
		return nil, err
	}

	uc.cache.Set(cookieValue, domain.CachedSession{
		SessionID:   session.SessionID,
		UserID:      session.UserID,
		Email:       session.Email,
		RawMetadata: session.RawMetadata,
		ExpiresAt:   session.ExpiresAt,
	})

	return session, nil
}
