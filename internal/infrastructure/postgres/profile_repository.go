package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"passforge/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `user_id::text, COALESCE(email, ''), COALESCE(first_name, ''),
	COALESCE(last_name, ''), COALESCE(avatar_url, ''), COALESCE(bio, ''), role,
	COALESCE(subscription_tier, ''), COALESCE(subscription_status, ''),
	subscription_ends_at, created_at, updated_at`

// ProfileRepository implements domain.ProfileStore for PostgreSQL
type ProfileRepository struct {
	db     DatabaseIface
	logger *slog.Logger
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(db DatabaseIface, logger *slog.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger.With("component", "profile_repository"),
	}
}

// FindByUserID loads the profile owned by userID.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	profile, err := scanProfile(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: failed to get profile: %w", domain.ErrStoreUnavailable, err)
	}
	return profile, nil
}

// Upsert inserts the profile or updates its editable fields. Role and
// subscription columns are only written on insert.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	userID, err := canonicalUserID(p.UserID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO profiles (
			user_id, email, first_name, last_name, avatar_url, bio,
			role, subscription_tier, subscription_status, subscription_ends_at,
			created_at, updated_at
		) VALUES (
			$1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			$7, NULLIF($8, ''), NULLIF($9, ''), $10, NOW(), NOW()
		)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			avatar_url = EXCLUDED.avatar_url,
			bio = EXCLUDED.bio,
			updated_at = NOW()
		RETURNING ` + profileColumns

	row := r.db.QueryRow(ctx, query,
		userID,
		p.Email,
		p.FirstName,
		p.LastName,
		p.AvatarURL,
		p.Bio,
		p.Role,
		p.SubscriptionTier,
		p.SubscriptionStatus,
		p.SubscriptionEndsAt,
	)

	stored, err := scanProfile(row)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to upsert profile", "user_id", p.UserID, "error", err)
		return nil, fmt.Errorf("%w: failed to upsert profile: %w", domain.ErrStoreUnavailable, err)
	}

	r.logger.InfoContext(ctx, "profile stored", "user_id", p.UserID)
	return stored, nil
}

// Delete removes the profile owned by userID.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%w: failed to delete profile: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}

	r.logger.InfoContext(ctx, "profile deleted", "user_id", userID)
	return nil
}

// canonicalUserID checks that userID is an identity UUID, matching the
// profiles.user_id column type, and returns its lowercase form.
func canonicalUserID(userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("%w: user id %q is not a uuid", domain.ErrProfileValidation, userID)
	}
	return id.String(), nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.AvatarURL,
		&p.Bio,
		&p.Role,
		&p.SubscriptionTier,
		&p.SubscriptionStatus,
		&p.SubscriptionEndsAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
