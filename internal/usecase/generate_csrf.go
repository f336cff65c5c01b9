package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"passforge/internal/domain"
)

// GenerateCSRF orchestrates CSRF token generation for an authenticated session.
type GenerateCSRF struct {
	validate *ValidateSession
	csrf     domain.CSRFTokenGenerator
	logger   *slog.Logger
}

// NewGenerateCSRF creates a new GenerateCSRF usecase.
func NewGenerateCSRF(v *ValidateSession, csrf domain.CSRFTokenGenerator, l *slog.Logger) *GenerateCSRF {
	return &GenerateCSRF{validate: v, csrf: csrf, logger: l}
}

// Execute validates the session cookie and generates a CSRF token bound to
// the Kratos session id.
func (uc *GenerateCSRF) Execute(ctx context.Context, cookie string) (string, error) {
	session, err := uc.validate.Execute(ctx, cookie)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrKratosUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrAuthFailed, err)
	}

	token, err := uc.csrf.Generate(session.SessionID)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to generate CSRF token", "error", err)
		return "", fmt.Errorf("%w: %w", domain.ErrCSRFSecretMissing, err)
	}

	return token, nil
}

// Verify checks token against sessionID.
func (uc *GenerateCSRF) Verify(sessionID, token string) error {
	if sessionID == "" || token == "" || !uc.csrf.Verify(sessionID, token) {
		return domain.ErrCSRFInvalid
	}
	return nil
}
