package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"passforge/internal/domain"
)

// HMACCSRFGenerator generates CSRF tokens using HMAC-SHA256.
// Implements domain.CSRFTokenGenerator.
type HMACCSRFGenerator struct {
	secret []byte
}

// NewHMACCSRFGenerator creates a new CSRF token generator.
func NewHMACCSRFGenerator(secret string) *HMACCSRFGenerator {
	return &HMACCSRFGenerator{secret: []byte(secret)}
}

// Generate creates a deterministic CSRF token from a session ID.
func (g *HMACCSRFGenerator) Generate(sessionID string) (string, error) {
	if len(g.secret) == 0 {
		return "", domain.ErrCSRFSecretMissing
	}
	return base64.URLEncoding.EncodeToString(g.sum(sessionID)), nil
}

// Verify reports whether token was generated for sessionID.
func (g *HMACCSRFGenerator) Verify(sessionID, token string) bool {
	if len(g.secret) == 0 || sessionID == "" || token == "" {
		return false
	}
	provided, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, g.sum(sessionID))
}

func (g *HMACCSRFGenerator) sum(sessionID string) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(sessionID))
	return mac.Sum(nil)
}
