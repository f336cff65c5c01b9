package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"passforge/internal/domain"
	"passforge/utils/validator"
)

// UpdateProfile writes the client-editable profile fields of the signed-in
// user and propagates the change to every live session of that user.
type UpdateProfile struct {
	store     domain.ProfileStore
	profiles  domain.ProfileSource
	bus       domain.SessionPublisher
	validator *validator.Validator
	logger    *slog.Logger
}

// NewUpdateProfile creates a new UpdateProfile usecase.
func NewUpdateProfile(store domain.ProfileStore, profiles domain.ProfileSource, bus domain.SessionPublisher, l *slog.Logger) *UpdateProfile {
	return &UpdateProfile{
		store:     store,
		profiles:  profiles,
		bus:       bus,
		validator: validator.New(),
		logger:    l,
	}
}

// Execute applies input to the profile of the session in state. A missing
// profile is created with the default role.
func (uc *UpdateProfile) Execute(ctx context.Context, state domain.AuthState, input domain.ProfileUpdate) (*domain.Profile, error) {
	session := state.Session
	if session == nil || session.UserID == "" || domain.IsSessionError(state.Err) {
		return nil, domain.ErrUnauthenticated
	}

	if err := uc.validator.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileValidation, err)
	}

	next := domain.Profile{Role: domain.RoleUser}
	if state.Profile != nil {
		next = *state.Profile
	}
	input.Apply(&next)
	next.UserID = session.UserID
	next.Email = session.Email

	stored, err := uc.store.Upsert(ctx, &next)
	if err != nil {
		uc.logger.ErrorContext(ctx, "profile upsert failed", "user_id", session.UserID, "error", err)
		return nil, err
	}

	uc.profiles.Invalidate(session.UserID)
	delivered := uc.bus.PublishUser(session.UserID, domain.SessionEvent{Kind: domain.SessionUserUpdated})
	uc.logger.InfoContext(ctx, "profile updated", "user_id", session.UserID, "notified_sessions", delivered)

	return stored, nil
}
