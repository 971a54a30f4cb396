package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studyplan.app/cloud/identity"
	"studyplan.app/cloud/models"
	"studyplan.app/cloud/storage"
)

func getWithToken(server *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

func TestSubscriptionStatus_NoRecordDefaultsInactive(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := getWithToken(server, "/api/v1/subscription/status", "tok_user1")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response SubscriptionStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.SubscriptionStatus != models.StatusInactive {
		t.Errorf("Expected status %s, got %s", models.StatusInactive, response.SubscriptionStatus)
	}
	if response.IsActive {
		t.Errorf("Expected is_active=false")
	}
	if response.CurrentPeriodStart != nil || response.CurrentPeriodEnd != nil {
		t.Errorf("Expected null period fields")
	}
}

func TestSubscriptionStatus_ActiveWithPeriod(t *testing.T) {
	store := storage.NewMemoryStorage()
	server := newTestServer(store, identity.NewMemoryDirectory())
	ctx := context.Background()

	if err := store.UpsertEntitlementState(ctx, &models.EntitlementState{
		UserID:           "user1",
		Status:           models.StatusActive,
		StripeCustomerID: "cus_123",
	}); err != nil {
		t.Fatalf("Failed to seed state: %v", err)
	}

	periodEnd := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.AppendEntitlementEvent(ctx, &models.EntitlementEvent{
		ID:         "evt1",
		UserID:     "user1",
		Status:     models.StatusActive,
		PeriodEnd:  &periodEnd,
		ReceivedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}

	w := getWithToken(server, "/api/v1/subscription/status", "tok_user1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		SubscriptionStatus string  `json:"subscription_status"`
		StripeCustomerID   string  `json:"stripe_customer_id"`
		CurrentPeriodEnd   *string `json:"current_period_end"`
		IsActive           bool    `json:"is_active"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.SubscriptionStatus != "active" || !response.IsActive {
		t.Errorf("Expected active status, got %+v", response)
	}
	if response.StripeCustomerID != "cus_123" {
		t.Errorf("Expected stripe customer 'cus_123', got '%s'", response.StripeCustomerID)
	}
	if response.CurrentPeriodEnd == nil || *response.CurrentPeriodEnd != "2025-01-01T00:00:00Z" {
		t.Errorf("Expected period end '2025-01-01T00:00:00Z' verbatim, got %v", response.CurrentPeriodEnd)
	}
}

func TestSubscriptionStatus_ReadFailureReturnsErrorStatus(t *testing.T) {
	store := &readFailingStorage{MemoryStorage: storage.NewMemoryStorage()}
	server := newTestServer(store, identity.NewMemoryDirectory())

	w := getWithToken(server, "/api/v1/subscription/status", "tok_user1")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	var response SubscriptionStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	// error shape mirrors the success shape, distinguished only by status
	if response.SubscriptionStatus != models.StatusError {
		t.Errorf("Expected status %s, got %s", models.StatusError, response.SubscriptionStatus)
	}
	if response.IsActive {
		t.Errorf("Expected is_active=false on read failure")
	}
	if response.Error == "" {
		t.Errorf("Expected error message in response")
	}
}

func TestSubscriptionStatus_MissingToken(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := getWithToken(server, "/api/v1/subscription/status", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestSubscriptionStatus_InvalidToken(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := getWithToken(server, "/api/v1/subscription/status", "tok_bogus")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestEntitlementGate_BlocksInactiveUser(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := getWithToken(server, "/api/v1/planner/access", "tok_user1")

	if w.Code != http.StatusPaymentRequired {
		t.Errorf("Expected status %d for inactive user, got %d", http.StatusPaymentRequired, w.Code)
	}
}

func TestEntitlementGate_AdmitsActiveUser(t *testing.T) {
	store := storage.NewMemoryStorage()
	server := newTestServer(store, identity.NewMemoryDirectory())

	if err := store.UpsertEntitlementState(context.Background(), &models.EntitlementState{
		UserID: "user1",
		Status: models.StatusActive,
	}); err != nil {
		t.Fatalf("Failed to seed state: %v", err)
	}

	w := getWithToken(server, "/api/v1/planner/access", "tok_user1")

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status %d for active user, got %d", http.StatusNoContent, w.Code)
	}
}

func TestEntitlementGate_ReadFailureIsNotLockout(t *testing.T) {
	store := &readFailingStorage{MemoryStorage: storage.NewMemoryStorage()}
	server := newTestServer(store, identity.NewMemoryDirectory())

	w := getWithToken(server, "/api/v1/planner/access", "tok_user1")

	// transient failure must be distinguishable from confirmed non-entitlement
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d on read failure, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

type readFailingStorage struct {
	*storage.MemoryStorage
}

func (s *readFailingStorage) GetEntitlementState(ctx context.Context, userID string) (*models.EntitlementState, error) {
	return nil, errors.New("connection refused")
}
