package usecase

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"passforge/internal/domain"
	"passforge/internal/infrastructure/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceFixture struct {
	validator *mockValidator
	cache     *mockCache
	bus       *events.SessionBus
	events    chan domain.SessionEvent
}

func newSourceFixture(session *domain.Session, err error) *sourceFixture {
	return &sourceFixture{
		validator: &mockValidator{session: session, err: err},
		cache:     newMockCache(),
		bus:       events.NewSessionBus(slog.Default()),
		events:    make(chan domain.SessionEvent, 8),
	}
}

func (f *sourceFixture) subscribe(t *testing.T, cookie string) func() {
	t.Helper()
	v := NewValidateSession(f.validator, f.cache, slog.Default())
	source := NewCookieSessionSource(cookie, v, f.bus, slog.Default())
	unsubscribe, err := source.Subscribe(context.Background(), func(e domain.SessionEvent) {
		f.events <- e
	})
	require.NoError(t, err)
	t.Cleanup(unsubscribe)
	return unsubscribe
}

func (f *sourceFixture) next(t *testing.T) domain.SessionEvent {
	t.Helper()
	select {
	case e := <-f.events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
		return domain.SessionEvent{}
	}
}

func TestCookieSessionSource_NoCookieIsSignedOut(t *testing.T) {
	f := newSourceFixture(nil, nil)
	f.subscribe(t, "")

	event := f.next(t)
	assert.Equal(t, domain.SessionInitial, event.Kind)
	assert.Nil(t, event.Session)
	assert.NoError(t, event.Err)
	assert.Zero(t, f.validator.callCount())
}

func TestCookieSessionSource_InitialSession(t *testing.T) {
	f := newSourceFixture(sessionFor("u1"), nil)
	f.subscribe(t, "cookie-1")

	event := f.next(t)
	assert.Equal(t, domain.SessionInitial, event.Kind)
	require.NotNil(t, event.Session)
	assert.Equal(t, "u1", event.Session.UserID)
	assert.Equal(t, 1, f.bus.Subscribers("sess-u1"))
}

func TestCookieSessionSource_InvalidCookieIsSessionError(t *testing.T) {
	f := newSourceFixture(nil, domain.ErrAuthFailed)
	f.subscribe(t, "cookie-bad")

	event := f.next(t)
	assert.Nil(t, event.Session)
	assert.ErrorIs(t, event.Err, domain.ErrAuthFailed)
}

func TestCookieSessionSource_RelaysSignOut(t *testing.T) {
	f := newSourceFixture(sessionFor("u1"), nil)
	f.subscribe(t, "cookie-1")
	f.next(t)

	delivered := f.bus.Publish("sess-u1", domain.SessionEvent{Kind: domain.SessionSignedOut})

	assert.Equal(t, 1, delivered)
	event := f.next(t)
	assert.Equal(t, domain.SessionSignedOut, event.Kind)
	assert.Nil(t, event.Session)
}

func TestCookieSessionSource_UserUpdatedKeepsCurrentSession(t *testing.T) {
	f := newSourceFixture(sessionFor("u1"), nil)
	f.subscribe(t, "cookie-1")
	f.next(t)

	f.bus.PublishUser("u1", domain.SessionEvent{Kind: domain.SessionUserUpdated})

	event := f.next(t)
	assert.Equal(t, domain.SessionUserUpdated, event.Kind)
	require.NotNil(t, event.Session)
	assert.Equal(t, "sess-u1", event.Session.SessionID)
}

func TestCookieSessionSource_TokenRefreshRevalidates(t *testing.T) {
	f := newSourceFixture(sessionFor("u1"), nil)
	f.subscribe(t, "cookie-1")
	f.next(t)

	refreshed := sessionFor("u1")
	refreshed.Email = "renamed@example.com"
	f.validator.set(refreshed, nil)
	f.cache.EvictSession("sess-u1")
	f.bus.Publish("sess-u1", domain.SessionEvent{Kind: domain.SessionTokenRefreshed})

	event := f.next(t)
	assert.Equal(t, domain.SessionTokenRefreshed, event.Kind)
	require.NotNil(t, event.Session)
	assert.Equal(t, "renamed@example.com", event.Session.Email)
	assert.Equal(t, 2, f.validator.callCount())
}

func TestCookieSessionSource_UnsubscribeDetaches(t *testing.T) {
	f := newSourceFixture(sessionFor("u1"), nil)
	unsubscribe := f.subscribe(t, "cookie-1")
	f.next(t)

	unsubscribe()
	unsubscribe()

	assert.Zero(t, f.bus.Subscribers("sess-u1"))
	assert.Zero(t, f.bus.Publish("sess-u1", domain.SessionEvent{Kind: domain.SessionSignedOut}))
}

func TestCookieSessionSource_MissingBus(t *testing.T) {
	v := NewValidateSession(&mockValidator{}, newMockCache(), slog.Default())
	source := NewCookieSessionSource("cookie-1", v, nil, slog.Default())

	_, err := source.Subscribe(context.Background(), func(domain.SessionEvent) {})

	assert.ErrorIs(t, err, domain.ErrSessionSubscription)
}
