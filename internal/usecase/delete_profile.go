package usecase

import (
	"context"
	"log/slog"

	"passforge/internal/domain"
)

// DeleteProfile removes the signed-in user's profile.
type DeleteProfile struct {
	store    domain.ProfileStore
	profiles domain.ProfileSource
	bus      domain.SessionPublisher
	logger   *slog.Logger
}

// NewDeleteProfile creates a new DeleteProfile usecase.
func NewDeleteProfile(store domain.ProfileStore, profiles domain.ProfileSource, bus domain.SessionPublisher, l *slog.Logger) *DeleteProfile {
	return &DeleteProfile{store: store, profiles: profiles, bus: bus, logger: l}
}

// Execute deletes the profile of the session in state.
func (uc *DeleteProfile) Execute(ctx context.Context, state domain.AuthState) error {
	session := state.Session
	if session == nil || session.UserID == "" || domain.IsSessionError(state.Err) {
		return domain.ErrUnauthenticated
	}

	if err := uc.store.Delete(ctx, session.UserID); err != nil {
		return err
	}

	uc.profiles.Invalidate(session.UserID)
	uc.bus.PublishUser(session.UserID, domain.SessionEvent{Kind: domain.SessionUserUpdated})
	uc.logger.InfoContext(ctx, "profile deleted", "user_id", session.UserID)
	return nil
}
