package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidSession means the token was rejected by the identity service,
// as opposed to the service being unreachable.
var ErrInvalidSession = errors.New("invalid session token")

// Sessions validates a session token and returns the user it belongs to.
// Session issuance is owned by the identity service; this subsystem only
// consumes tokens.
type Sessions interface {
	UserIDForToken(ctx context.Context, token string) (string, error)
}

// HTTPSessions validates tokens against the identity service using the anon
// credential tier.
type HTTPSessions struct {
	BaseURL string
	AnonKey string
	Client  *http.Client
}

func NewHTTPSessions(baseURL, anonKey string) *HTTPSessions {
	return &HTTPSessions{
		BaseURL: baseURL,
		AnonKey: anonKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSessions) UserIDForToken(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/v1/session", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if s.AnonKey != "" {
		req.Header.Set("X-Api-Key", s.AnonKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("session validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrInvalidSession
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session validation returned status %d", resp.StatusCode)
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if body.UserID == "" {
		return "", ErrInvalidSession
	}

	return body.UserID, nil
}

// TokenFromRequest extracts the bearer token from the Authorization header.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// StaticSessions maps fixed tokens to user ids. Test helper.
type StaticSessions struct {
	Tokens map[string]string
}

func (s *StaticSessions) UserIDForToken(ctx context.Context, token string) (string, error) {
	userID, exists := s.Tokens[token]
	if !exists {
		return "", ErrInvalidSession
	}
	return userID, nil
}
