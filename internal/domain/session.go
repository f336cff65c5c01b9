package domain

import "time"

// Session is the authenticated identity reported by the identity provider.
type Session struct {
	UserID      string
	Email       string
	SessionID   string
	RawMetadata map[string]any
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// CachedSession holds session data stored in the session cache.
type CachedSession struct {
	SessionID   string
	UserID      string
	Email       string
	RawMetadata map[string]any
	ExpiresAt   time.Time
}

// SessionEventKind names an auth transition.
type SessionEventKind string

const (
	SessionInitial        SessionEventKind = "initial"
	SessionSignedIn       SessionEventKind = "signed_in"
	SessionSignedOut      SessionEventKind = "signed_out"
	SessionTokenRefreshed SessionEventKind = "token_refreshed"
	SessionUserUpdated    SessionEventKind = "user_updated"
)

// Valid reports whether k is a known event kind.
func (k SessionEventKind) Valid() bool {
	switch k {
	case SessionInitial, SessionSignedIn, SessionSignedOut, SessionTokenRefreshed, SessionUserUpdated:
		return true
	}
	return false
}

// SessionEvent is one auth transition. Session is nil when signed out;
// Err is set when the auth operation itself failed.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
	Err     error
}
