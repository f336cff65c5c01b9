package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"passforge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoamiBody(active bool, expiresAt time.Time) string {
	return fmt.Sprintf(`{
		"id": "sess-1",
		"active": %t,
		"expires_at": %q,
		"identity": {
			"id": "u1",
			"schema_id": "default",
			"schema_url": "http://kratos/schemas/default",
			"traits": {"email": "ana@example.com", "locale": "pt-BR"},
			"metadata_public": {"plan_hint": "pro"},
			"created_at": "2026-01-02T03:04:05Z"
		}
	}`, active, expiresAt.UTC().Format(time.RFC3339))
}

func newWhoamiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/whoami", r.URL.Path)
		assert.Contains(t, r.Header.Get("Cookie"), "ory_kratos_session=")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestKratosGateway_ValidateSession_Active(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour)
	server := newWhoamiServer(t, http.StatusOK, whoamiBody(true, expiresAt))

	gw := NewKratosGateway(server.URL, 5*time.Second)
	session, err := gw.ValidateSession(context.Background(), "ory_kratos_session=abc")

	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "ana@example.com", session.Email)
	assert.Equal(t, "sess-1", session.SessionID)
	assert.Equal(t, "pt-BR", session.RawMetadata["locale"])
	assert.Equal(t, "pro", session.RawMetadata["plan_hint"])
	assert.NotContains(t, session.RawMetadata, "email")
	assert.WithinDuration(t, expiresAt, session.ExpiresAt, time.Second)
	assert.Equal(t, 2026, session.CreatedAt.Year())
}

func TestKratosGateway_ValidateSession_Inactive(t *testing.T) {
	server := newWhoamiServer(t, http.StatusOK, whoamiBody(false, time.Now().Add(time.Hour)))

	gw := NewKratosGateway(server.URL, 5*time.Second)
	session, err := gw.ValidateSession(context.Background(), "ory_kratos_session=abc")

	assert.Nil(t, session)
	assert.True(t, errors.Is(err, domain.ErrSessionInactive))
}

func TestKratosGateway_ValidateSession_Expired(t *testing.T) {
	server := newWhoamiServer(t, http.StatusOK, whoamiBody(true, time.Now().Add(-time.Minute)))

	gw := NewKratosGateway(server.URL, 5*time.Second)
	_, err := gw.ValidateSession(context.Background(), "ory_kratos_session=abc")

	assert.True(t, errors.Is(err, domain.ErrSessionExpired))
}

func TestKratosGateway_ValidateSession_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthFailed},
		{"second factor", http.StatusForbidden, domain.ErrAuthFailed},
		{"server error", http.StatusInternalServerError, domain.ErrKratosUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newWhoamiServer(t, tt.status, `{"error":{"code":1,"message":"nope"}}`)

			gw := NewKratosGateway(server.URL, 5*time.Second)
			session, err := gw.ValidateSession(context.Background(), "ory_kratos_session=abc")

			assert.Nil(t, session)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestKratosGateway_ValidateSession_Unreachable(t *testing.T) {
	gw := NewKratosGateway("http://127.0.0.1:1", time.Second)
	_, err := gw.ValidateSession(context.Background(), "ory_kratos_session=abc")

	assert.True(t, errors.Is(err, domain.ErrKratosUnavailable))
}

func TestKratosGateway_ValidateSession_EmptyCookie(t *testing.T) {
	gw := NewKratosGateway("http://unused", 5*time.Second)
	session, err := gw.ValidateSession(context.Background(), "")

	assert.Nil(t, session)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}
