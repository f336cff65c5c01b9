package domain

//go:generate mockgen -source=port.go -destination=../mocks/mock_port.go -package=mocks

import "context"

// SessionValidator validates a session cookie against the identity provider.
type SessionValidator interface {
	ValidateSession(ctx context.Context, cookie string) (*Session, error)
}

// SessionCache provides read/write access to cached session data, keyed by
// session cookie.
type SessionCache interface {
	Get(key string) (*CachedSession, bool)
	Set(key string, session CachedSession)
	EvictSession(sessionID string) int
}

// SessionListener receives auth transitions.
type SessionListener func(SessionEvent)

// SessionSource delivers auth transitions for one client. It must emit at
// least one event, even when there is no session.
type SessionSource interface {
	Subscribe(ctx context.Context, listener SessionListener) (unsubscribe func(), err error)
}

// SessionPublisher fans auth transitions out to subscribed sources.
type SessionPublisher interface {
	Subscribe(sessionID string, listener SessionListener) (unsubscribe func())
	Bind(userID, sessionID string)
	Publish(sessionID string, event SessionEvent) int
	PublishUser(userID string, event SessionEvent) int
}

// ProfileStore persists profiles.
type ProfileStore interface {
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) (*Profile, error)
	Delete(ctx context.Context, userID string) error
}

// ProfileSource is a keyed, cached view over a ProfileStore.
type ProfileSource interface {
	Fetch(ctx context.Context, userID string) (*Profile, error)
	Peek(userID string) (ProfileEntry, bool)
	Invalidate(userID string)
}

// TokenIssuer generates signed backend JWT tokens.
type TokenIssuer interface {
	IssueBackendToken(user *AuthUser, sessionID string) (string, error)
}

// CSRFTokenGenerator generates and verifies CSRF tokens bound to a session.
type CSRFTokenGenerator interface {
	Generate(sessionID string) (string, error)
	Verify(sessionID, token string) bool
}
