package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"passforge/internal/domain"
	"passforge/internal/infrastructure/cache"
	"passforge/internal/infrastructure/events"
	"passforge/internal/infrastructure/token"
	"passforge/internal/mocks"
	"passforge/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	e         *echo.Echo
	validator *mocks.MockSessionValidator
	profiles  *mocks.MockProfileSource
	store     *mocks.MockProfileStore
	issuer    *mocks.MockTokenIssuer
	csrf      *token.HMACCSRFGenerator
	bus       *events.SessionBus

	session *SessionHandler
	check   *ValidateHandler
	stream  *EventsHandler
	token   *CSRFHandler
	profile *ProfileHandler
	hooks   *HooksHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := slog.Default()

	f := &fixture{
		e:         echo.New(),
		validator: mocks.NewMockSessionValidator(ctrl),
		profiles:  mocks.NewMockProfileSource(ctrl),
		store:     mocks.NewMockProfileStore(ctrl),
		issuer:    mocks.NewMockTokenIssuer(ctrl),
		csrf:      token.NewHMACCSRFGenerator("test-csrf-secret"),
		bus:       events.NewSessionBus(logger),
	}

	sessionCache := cache.NewSessionCache(time.Minute)
	t.Cleanup(sessionCache.Close)

	validate := usecase.NewValidateSession(f.validator, sessionCache, logger)
	auth := usecase.NewGetAuthState(validate, f.bus, f.profiles, f.issuer, time.Second, logger)
	csrf := usecase.NewGenerateCSRF(validate, f.csrf, logger)

	f.session = NewSessionHandler(auth)
	f.check = NewValidateHandler(auth)
	f.stream = NewEventsHandler(auth, time.Second)
	f.token = NewCSRFHandler(csrf)
	f.profile = NewProfileHandler(
		auth,
		csrf,
		usecase.NewUpdateProfile(f.store, f.profiles, f.bus, logger),
		usecase.NewDeleteProfile(f.store, f.profiles, f.bus, logger),
	)
	f.hooks = NewHooksHandler(usecase.NewIngestSessionEvent(sessionCache, f.profiles, f.bus, logger))
	return f
}

func testSession() *domain.Session {
	return &domain.Session{UserID: "u1", Email: "ana@example.com", SessionID: "sess-1"}
}

func testProfile() *domain.Profile {
	return &domain.Profile{UserID: "u1", FirstName: "Ana", Role: domain.RoleUser}
}

func (f *fixture) signedIn() {
	f.validator.EXPECT().
		ValidateSession(gomock.Any(), "ory_kratos_session=cookie-1").
		Return(testSession(), nil).
		AnyTimes()
}

func (f *fixture) withProfile(p *domain.Profile) {
	f.profiles.EXPECT().
		Peek("u1").
		Return(domain.ProfileEntry{Value: p, Status: domain.ProfileSuccess}, true).
		AnyTimes()
}

func (f *fixture) withoutProfile() {
	f.profiles.EXPECT().Peek("u1").Return(domain.ProfileEntry{}, false).AnyTimes()
	f.profiles.EXPECT().Fetch(gomock.Any(), "u1").
		Return(nil, errors.Join(domain.ErrProfileFetch, domain.ErrProfileNotFound)).
		AnyTimes()
}

func (f *fixture) context(method, body string, cookie bool) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cookie-1"})
	}
	rec := httptest.NewRecorder()
	return f.e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected echo.HTTPError, got %v", err)
	return he.Code
}

func TestSessionHandler_Authenticated(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withProfile(testProfile())
	f.issuer.EXPECT().IssueBackendToken(gomock.Any(), "sess-1").Return("backend.jwt", nil)

	c, rec := f.context(http.MethodGet, "", true)
	require.NoError(t, f.session.Handle(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "backend.jwt", rec.Header().Get(BackendTokenHeader))

	var body authStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.True(t, body.IsAuthenticated)
	assert.Equal(t, domain.PhaseAuthenticated, body.Phase)
	assert.Equal(t, "Ana", body.User.FirstName)
	assert.Equal(t, "ana@example.com", body.User.Email)
	assert.Nil(t, body.Error)
}

func TestSessionHandler_SignedOut(t *testing.T) {
	f := newFixture(t)

	c, rec := f.context(http.MethodGet, "", false)
	require.NoError(t, f.session.Handle(c))

	var body authStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, domain.PhaseSignedOut, body.Phase)
	assert.Nil(t, body.User)
	assert.Empty(t, rec.Header().Get(BackendTokenHeader))
}

func TestSessionHandler_ProviderDown(t *testing.T) {
	f := newFixture(t)
	f.validator.EXPECT().ValidateSession(gomock.Any(), gomock.Any()).Return(nil, domain.ErrKratosUnavailable)

	c, rec := f.context(http.MethodGet, "", true)
	require.NoError(t, f.session.Handle(c))

	var body authStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.PhaseAuthError, body.Phase)
	require.NotNil(t, body.Error)
	assert.Equal(t, "session", body.Error.Kind)
}

func TestValidateHandler(t *testing.T) {
	t.Run("authenticated", func(t *testing.T) {
		f := newFixture(t)
		f.signedIn()
		f.withProfile(&domain.Profile{UserID: "u1", Role: domain.RoleAdmin})
		f.issuer.EXPECT().IssueBackendToken(gomock.Any(), "sess-1").Return("backend.jwt", nil)

		c, rec := f.context(http.MethodGet, "", true)
		require.NoError(t, f.check.Handle(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Header().Get("X-PassForge-User-Id"))
		assert.Equal(t, "ana@example.com", rec.Header().Get("X-PassForge-User-Email"))
		assert.Equal(t, domain.RoleAdmin, rec.Header().Get("X-PassForge-User-Role"))
		assert.Equal(t, "backend.jwt", rec.Header().Get(BackendTokenHeader))
	})

	t.Run("no cookie", func(t *testing.T) {
		f := newFixture(t)
		c, _ := f.context(http.MethodGet, "", false)
		assert.Equal(t, http.StatusUnauthorized, httpCode(t, f.check.Handle(c)))
	})

	t.Run("profile missing", func(t *testing.T) {
		f := newFixture(t)
		f.signedIn()
		f.withoutProfile()

		c, rec := f.context(http.MethodGet, "", true)
		assert.Equal(t, http.StatusUnauthorized, httpCode(t, f.check.Handle(c)))
		assert.Empty(t, rec.Header().Get("X-PassForge-User-Id"))
	})

	t.Run("provider down", func(t *testing.T) {
		f := newFixture(t)
		f.validator.EXPECT().ValidateSession(gomock.Any(), gomock.Any()).Return(nil, domain.ErrKratosUnavailable)

		c, _ := f.context(http.MethodGet, "", true)
		assert.Equal(t, http.StatusBadGateway, httpCode(t, f.check.Handle(c)))
	})
}

func TestCSRFHandler(t *testing.T) {
	f := newFixture(t)
	f.signedIn()

	c, rec := f.context(http.MethodPost, "", true)
	require.NoError(t, f.token.Handle(c))

	var body csrfResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, f.csrf.Verify("sess-1", body.Data.CSRFToken))

	c, rec = f.context(http.MethodPost, "", false)
	require.NoError(t, f.token.Handle(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileHandler_Get(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withProfile(testProfile())

	c, rec := f.context(http.MethodGet, "", true)
	require.NoError(t, f.profile.Get(c))

	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "Ana", profile.FirstName)
}

func TestProfileHandler_GetMissing(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withoutProfile()

	c, _ := f.context(http.MethodGet, "", true)
	assert.Equal(t, http.StatusNotFound, httpCode(t, f.profile.Get(c)))
}

func TestProfileHandler_UpdateRequiresCSRF(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withProfile(testProfile())

	c, _ := f.context(http.MethodPut, `{"first_name":"Bea"}`, true)
	c.Request().Header.Set(CSRFHeader, "forged")

	assert.Equal(t, http.StatusForbidden, httpCode(t, f.profile.Update(c)))
}

func TestProfileHandler_Update(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withoutProfile()
	f.store.EXPECT().Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
			return p, nil
		})
	f.profiles.EXPECT().Invalidate("u1")

	csrfToken, err := f.csrf.Generate("sess-1")
	require.NoError(t, err)

	c, rec := f.context(http.MethodPut, `{"first_name":"Bea","role":"admin"}`, true)
	c.Request().Header.Set(CSRFHeader, csrfToken)
	require.NoError(t, f.profile.Update(c))

	var profile domain.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "Bea", profile.FirstName)
	assert.Equal(t, domain.RoleUser, profile.Role, "role is never taken from the client")
}

func TestProfileHandler_UpdateValidation(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withProfile(testProfile())

	csrfToken, err := f.csrf.Generate("sess-1")
	require.NoError(t, err)

	c, _ := f.context(http.MethodPut, `{"avatar_url":"not a url"}`, true)
	c.Request().Header.Set(CSRFHeader, csrfToken)

	assert.Equal(t, http.StatusUnprocessableEntity, httpCode(t, f.profile.Update(c)))
}

func TestProfileHandler_Delete(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withProfile(testProfile())
	f.store.EXPECT().Delete(gomock.Any(), "u1").Return(nil)
	f.profiles.EXPECT().Invalidate("u1")

	csrfToken, err := f.csrf.Generate("sess-1")
	require.NoError(t, err)

	c, rec := f.context(http.MethodDelete, "", true)
	c.Request().Header.Set(CSRFHeader, csrfToken)
	require.NoError(t, f.profile.Delete(c))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHooksHandler(t *testing.T) {
	f := newFixture(t)
	received := make(chan domain.SessionEvent, 1)
	unsubscribe := f.bus.Subscribe("sess-1", func(e domain.SessionEvent) { received <- e })
	defer unsubscribe()

	c, rec := f.context(http.MethodPost, `{"event":"signed_out","session_id":"sess-1","user_id":"u1"}`, false)
	require.NoError(t, f.hooks.HandleSession(c))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"delivered":1}`, rec.Body.String())
	assert.Equal(t, domain.SessionSignedOut, (<-received).Kind)

	c, _ = f.context(http.MethodPost, `{"event":"password_changed","session_id":"sess-1"}`, false)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, f.hooks.HandleSession(c)))
}

func TestHealthHandler(t *testing.T) {
	e := echo.New()

	h := NewHealthHandler(map[string]HealthCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unhealthy","postgres":"unavailable"}`, rec.Body.String())

	h = NewHealthHandler(nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestEventsHandler_StreamsStateChanges(t *testing.T) {
	f := newFixture(t)
	f.signedIn()
	f.withProfile(testProfile())
	f.e.GET("/session/events", f.stream.Handle)

	srv := httptest.NewServer(f.e)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/session/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "cookie-1"})

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	lines := bufio.NewScanner(resp.Body)
	nextPhase := func() domain.Phase {
		for lines.Scan() {
			data, ok := strings.CutPrefix(lines.Text(), "data: ")
			if !ok {
				continue
			}
			var body authStateResponse
			require.NoError(t, json.Unmarshal([]byte(data), &body))
			return body.Phase
		}
		t.Fatal("stream ended early")
		return ""
	}

	for nextPhase() != domain.PhaseAuthenticated {
	}

	require.Eventually(t, func() bool { return f.bus.Subscribers("sess-1") == 1 }, time.Second, 5*time.Millisecond)
	f.bus.Publish("sess-1", domain.SessionEvent{Kind: domain.SessionSignedOut})

	assert.Equal(t, domain.PhaseSignedOut, nextPhase())
}
