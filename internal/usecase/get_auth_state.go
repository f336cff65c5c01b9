package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"passforge/internal/domain"
)

// AuthResult is a settled auth state plus, when authenticated, a backend
// token for downstream services.
type AuthResult struct {
	State        domain.AuthState
	BackendToken string
}

// GetAuthState resolves the reconciled auth state for a session cookie.
type GetAuthState struct {
	validate *ValidateSession
	bus      domain.SessionPublisher
	profiles domain.ProfileSource
	issuer   domain.TokenIssuer
	fallback time.Duration
	logger   *slog.Logger
}

// NewGetAuthState creates a new GetAuthState usecase. issuer may be nil, in
// which case no backend token is produced.
func NewGetAuthState(
	v *ValidateSession,
	bus domain.SessionPublisher,
	profiles domain.ProfileSource,
	issuer domain.TokenIssuer,
	fallback time.Duration,
	l *slog.Logger,
) *GetAuthState {
	return &GetAuthState{
		validate: v,
		bus:      bus,
		profiles: profiles,
		issuer:   issuer,
		fallback: fallback,
		logger:   l,
	}
}

// Watch starts a watcher for cookie. The caller owns the watcher and must
// Close it. The watcher is returned even when subscription fails; its state
// then carries the error.
func (uc *GetAuthState) Watch(ctx context.Context, cookie string) (*AuthStateWatcher, error) {
	source := NewCookieSessionSource(cookie, uc.validate, uc.bus, uc.logger)
	w := NewAuthStateWatcher(source, uc.profiles, uc.fallback, uc.logger)
	if err := w.Start(ctx); err != nil {
		return w, err
	}
	return w, nil
}

// Resolve waits for the state of cookie to settle and returns it.
func (uc *GetAuthState) Resolve(ctx context.Context, cookie string) (domain.AuthState, error) {
	w, _ := uc.Watch(ctx, cookie)
	defer w.Close()

	state, err := w.WaitSettled(ctx)
	if err != nil {
		uc.logger.WarnContext(ctx, "auth state did not settle", "phase", state.Phase, "error", err)
		return state, err
	}
	return state, nil
}

// Execute resolves the state of cookie and, when authenticated, issues a
// backend token for it.
func (uc *GetAuthState) Execute(ctx context.Context, cookie string) (*AuthResult, error) {
	state, err := uc.Resolve(ctx, cookie)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{State: state}
	if !state.IsAuthenticated || uc.issuer == nil {
		return result, nil
	}

	token, err := uc.issuer.IssueBackendToken(state.User, state.Session.SessionID)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to issue backend token", "user_id", state.User.UserID, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenGeneration, err)
	}
	result.BackendToken = token
	return result, nil
}
