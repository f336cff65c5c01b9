package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"passforge/config"
	"passforge/internal/adapter/handler"
	"passforge/internal/domain"
	"passforge/internal/mocks"
	custommw "passforge/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "8888",
		KratosURL:              "http://kratos:4433",
		KratosTimeout:          time.Second,
		CacheTTL:               time.Minute,
		ProfileCacheTTL:        time.Minute,
		SessionFallbackTimeout: time.Second,
		CSRFSecret:             "test-csrf-secret",
		AuthSharedSecret:       "internal-secret",
	}
}

func newTestApplication(t *testing.T, checks map[string]handler.HealthCheck) *application {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := dependencies{
		validator: mocks.NewMockSessionValidator(ctrl),
		store:     mocks.NewMockProfileStore(ctrl),
		checks:    checks,
	}
	app := newApplication(testConfig(), deps, "", slog.Default())
	t.Cleanup(app.close)
	return app
}

func TestApplication_Health(t *testing.T) {
	app := newTestApplication(t, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestApplication_SessionWithoutCookieIsSignedOut(t *testing.T) {
	app := newTestApplication(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	rec := httptest.NewRecorder()
	app.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isAuthenticated":false`)
	assert.Contains(t, rec.Body.String(), string(domain.PhaseSignedOut))
}

func TestApplication_ValidateWithoutCookie(t *testing.T) {
	app := newTestApplication(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/validate", nil)
	rec := httptest.NewRecorder()
	app.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApplication_InternalHooksRequireSecret(t *testing.T) {
	app := newTestApplication(t, nil)
	body := `{"event":"signed_out","session_id":"sess-1"}`

	tests := []struct {
		name     string
		secret   string
		wantCode int
	}{
		{"missing secret", "", http.StatusUnauthorized},
		{"wrong secret", "nope", http.StatusForbidden},
		{"valid secret", "internal-secret", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/hooks/session", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.secret != "" {
				req.Header.Set(custommw.InternalAuthHeader, tt.secret)
			}
			rec := httptest.NewRecorder()
			app.echo.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRunHealthcheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	assert.NoError(t, runHealthcheck(healthy.URL+"/health"))
	assert.ErrorContains(t, runHealthcheck(unhealthy.URL+"/health"), "status: 503")
}
