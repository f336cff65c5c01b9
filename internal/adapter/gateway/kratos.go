package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"passforge/internal/domain"

	kratos "github.com/ory/kratos-client-go"
)

// KratosGateway implements domain.SessionValidator.
type KratosGateway struct {
	client *kratos.APIClient
}

// NewKratosGateway creates a new Kratos gateway with tuned HTTP transport.
func NewKratosGateway(baseURL string, timeout time.Duration) *KratosGateway {
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: baseURL},
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	configuration.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	return &KratosGateway{client: kratos.NewAPIClient(configuration)}
}

// ValidateSession validates a session cookie and returns the session.
func (g *KratosGateway) ValidateSession(ctx context.Context, cookie string) (*domain.Session, error) {
	if cookie == "" {
		return nil, domain.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	session, resp, err := g.client.FrontendAPI.ToSession(ctx).Cookie(cookie).Execute()
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, domain.ErrAuthFailed
			case http.StatusForbidden:
				// second factor pending
				return nil, fmt.Errorf("%w: additional authentication required", domain.ErrAuthFailed)
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", domain.ErrKratosUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrKratosUnavailable, err)
	}

	if session.Active != nil && !*session.Active {
		return nil, domain.ErrSessionInactive
	}
	if session.ExpiresAt != nil && session.ExpiresAt.Before(time.Now()) {
		return nil, domain.ErrSessionExpired
	}
	if session.Identity == nil {
		return nil, domain.ErrMissingIdentity
	}

	traits, _ := session.Identity.Traits.(map[string]interface{})
	email, _ := traits["email"].(string)

	out := &domain.Session{
		UserID:      session.Identity.Id,
		Email:       email,
		SessionID:   session.Id,
		RawMetadata: rawMetadata(traits, session.Identity.MetadataPublic),
	}
	if session.Identity.CreatedAt != nil {
		out.CreatedAt = *session.Identity.CreatedAt
	}
	if session.ExpiresAt != nil {
		out.ExpiresAt = *session.ExpiresAt
	}
	return out, nil
}

// rawMetadata flattens identity traits and public metadata. Public
// metadata keys win on collision; email lives on Session itself.
func rawMetadata(traits map[string]interface{}, public interface{}) map[string]any {
	meta := make(map[string]any, len(traits))
	for k, v := range traits {
		if k == "email" {
			continue
		}
		meta[k] = v
	}
	if pub, ok := public.(map[string]interface{}); ok {
		for k, v := range pub {
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
