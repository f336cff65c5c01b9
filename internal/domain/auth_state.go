package domain

import "time"

// Phase is the coarse auth state a consumer can switch on.
type Phase string

const (
	PhaseUnresolved     Phase = "unresolved"
	PhaseSessionLoading Phase = "session_loading"
	PhaseProfileLoading Phase = "profile_loading"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseSignedOut      Phase = "signed_out"
	PhaseAuthError      Phase = "auth_error"
)

// SessionState is the latest value exposed by a session source.
type SessionState struct {
	Session  *Session
	Loading  bool
	Err      error
	Resolved bool // at least one event observed or loading forced off
}

// ProfileState is the latest value exposed by a profile source for the
// current session's user.
type ProfileState struct {
	Profile *Profile
	Loading bool
	Err     error
}

// AuthUser merges session and profile fields. Session identity always wins.
type AuthUser struct {
	UserID             string         `json:"user_id"`
	Email              string         `json:"email"`
	FirstName          string         `json:"first_name,omitempty"`
	LastName           string         `json:"last_name,omitempty"`
	AvatarURL          string         `json:"avatar_url,omitempty"`
	Bio                string         `json:"bio,omitempty"`
	Role               string         `json:"role,omitempty"`
	SubscriptionTier   string         `json:"subscription_tier,omitempty"`
	SubscriptionStatus string         `json:"subscription_status,omitempty"`
	SubscriptionEndsAt *time.Time     `json:"subscription_ends_at,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// AuthState is the reconciled authentication state.
type AuthState struct {
	Session         *Session
	Profile         *Profile
	User            *AuthUser
	IsAuthenticated bool
	IsLoading       bool
	Err             error
	Phase           Phase
	TimedOut        bool
}

// Reconcile derives AuthState from the latest session and profile values.
// It is pure: equal inputs yield structurally equal outputs.
func Reconcile(s SessionState, p ProfileState) AuthState {
	sessionReady := s.Session != nil && !s.Loading && s.Err == nil
	profileReady := p.Profile != nil && !p.Loading && p.Err == nil

	state := AuthState{
		Session:         s.Session,
		IsAuthenticated: sessionReady && profileReady,
		IsLoading:       s.Loading || (s.Session != nil && p.Loading),
	}

	switch {
	case s.Err != nil:
		state.Err = s.Err
	case sessionReady && s.Session.UserID == "":
		state.Err = ErrMissingIdentity
		state.IsAuthenticated = false
	case sessionReady && p.Err != nil:
		state.Err = p.Err
	}

	if s.Session != nil {
		state.Profile = p.Profile
		state.User = mergeUser(s.Session, p.Profile)
	}

	state.Phase = phaseOf(s, state)
	return state
}

func phaseOf(s SessionState, st AuthState) Phase {
	switch {
	case st.Err != nil:
		return PhaseAuthError
	case st.IsAuthenticated:
		return PhaseAuthenticated
	case s.Loading:
		return PhaseSessionLoading
	case st.IsLoading:
		return PhaseProfileLoading
	case !s.Resolved:
		return PhaseUnresolved
	case s.Session == nil:
		return PhaseSignedOut
	default:
		// session present, profile not requested yet
		return PhaseUnresolved
	}
}

func mergeUser(s *Session, p *Profile) *AuthUser {
	u := &AuthUser{}
	if p != nil {
		u.Email = p.Email
		u.FirstName = p.FirstName
		u.LastName = p.LastName
		u.AvatarURL = p.AvatarURL
		u.Bio = p.Bio
		u.Role = p.Role
		u.SubscriptionTier = p.SubscriptionTier
		u.SubscriptionStatus = p.SubscriptionStatus
		u.SubscriptionEndsAt = p.SubscriptionEndsAt
	}
	if len(s.RawMetadata) > 0 {
		u.Metadata = make(map[string]any, len(s.RawMetadata))
		for k, v := range s.RawMetadata {
			u.Metadata[k] = v
		}
	}
	u.UserID = s.UserID
	u.Email = s.Email
	return u
}
