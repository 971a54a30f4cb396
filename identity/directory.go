package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyplan.app/cloud/models"
)

// HTTPDirectory talks to the identity service's admin API. The service key
// is the elevated credential tier; the anon tier cannot search or create
// users across accounts.
type HTTPDirectory struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

func NewHTTPDirectory(baseURL, serviceKey string) *HTTPDirectory {
	return &HTTPDirectory{
		BaseURL:    baseURL,
		ServiceKey: serviceKey,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type directoryUser struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Shadow bool   `json:"shadow"`
}

func (d *HTTPDirectory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	endpoint := fmt.Sprintf("%s/admin/v1/users?email=%s", d.BaseURL, url.QueryEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.ServiceKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory lookup returned status %d", resp.StatusCode)
	}

	var user directoryUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	return &models.User{ID: user.ID, Email: user.Email, Name: user.Name, Shadow: user.Shadow}, nil
}

func (d *HTTPDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	endpoint := fmt.Sprintf("%s/admin/v1/users/%s", d.BaseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.ServiceKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory lookup returned status %d", resp.StatusCode)
	}

	var user directoryUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	return &models.User{ID: user.ID, Email: user.Email, Name: user.Name, Shadow: user.Shadow}, nil
}

func (d *HTTPDirectory) CreateShadowUser(ctx context.Context, email string) (*models.User, error) {
	endpoint := d.BaseURL + "/admin/v1/users"

	payload, err := json.Marshal(map[string]interface{}{
		"email":  email,
		"shadow": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.ServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("directory create returned status %d", resp.StatusCode)
	}

	var user directoryUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}

	return &models.User{ID: user.ID, Email: user.Email, Shadow: true}, nil
}

// MemoryDirectory is the in-process directory used by tests and local
// development.
type MemoryDirectory struct {
	mu    sync.Mutex
	Users map[string]models.User // keyed by user id
	// CreateErr, when set, fails CreateShadowUser. Lets tests exercise the
	// unprocessable-event path.
	CreateErr error
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{Users: make(map[string]models.User)}
}

func (d *MemoryDirectory) AddUser(user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Users[user.ID] = user
}

func (d *MemoryDirectory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, user := range d.Users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (d *MemoryDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, exists := d.Users[id]
	if !exists {
		return nil, nil
	}
	u := user
	return &u, nil
}

func (d *MemoryDirectory) CreateShadowUser(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.CreateErr != nil {
		return nil, d.CreateErr
	}

	user := models.User{
		ID:        uuid.Must(uuid.NewRandom()).String(),
		Email:     email,
		Shadow:    true,
		CreatedAt: time.Now().UTC(),
	}
	d.Users[user.ID] = user

	u := user
	return &u, nil
}
