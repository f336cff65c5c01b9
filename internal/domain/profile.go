package domain

import "time"

// Profile roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Profile is supplementary user data stored separately from the identity.
type Profile struct {
	UserID             string     `json:"user_id" validate:"required"`
	Email              string     `json:"email,omitempty" validate:"omitempty,email"`
	FirstName          string     `json:"first_name,omitempty" validate:"max=100"`
	LastName           string     `json:"last_name,omitempty" validate:"max=100"`
	AvatarURL          string     `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Bio                string     `json:"bio,omitempty" validate:"max=500"`
	Role               string     `json:"role" validate:"required,profile_role"`
	SubscriptionTier   string     `json:"subscription_tier,omitempty" validate:"omitempty,oneof=free pro team"`
	SubscriptionStatus string     `json:"subscription_status,omitempty" validate:"omitempty,oneof=active trialing past_due canceled"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ProfileUpdate carries the client-editable profile fields.
// Role and subscription fields are server-owned.
type ProfileUpdate struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
	Bio       string `json:"bio" validate:"max=500"`
}

// Apply copies the editable fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	p.FirstName = u.FirstName
	p.LastName = u.LastName
	p.AvatarURL = u.AvatarURL
	p.Bio = u.Bio
}

// ProfileStatus is the fetch status of a cached profile entry.
type ProfileStatus string

const (
	ProfileIdle    ProfileStatus = "idle"
	ProfileLoading ProfileStatus = "loading"
	ProfileSuccess ProfileStatus = "success"
	ProfileError   ProfileStatus = "error"
)

// ProfileEntry is a cache entry. Value keeps the last successful profile
// even when the latest fetch failed.
type ProfileEntry struct {
	Value     *Profile
	Status    ProfileStatus
	Err       error
	FetchedAt time.Time
}
