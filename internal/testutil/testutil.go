package testutil

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"

	"studyplan.app/cloud/handlers"
	"studyplan.app/cloud/identity"
	"studyplan.app/cloud/internal/auth"
	"studyplan.app/cloud/internal/email"
	"studyplan.app/cloud/models"
	"studyplan.app/cloud/storage"
)

// WebhookSecret is the shared secret used to sign test webhook payloads.
const WebhookSecret = "whsec_test"

// TestStorage creates an empty in-memory storage backend
func TestStorage() *storage.MemoryStorage {
	return storage.NewMemoryStorage()
}

// TestDirectory creates an in-memory identity directory with test users
func TestDirectory() *identity.MemoryDirectory {
	directory := identity.NewMemoryDirectory()
	directory.AddUser(CreateTestUser("user1", "user1@example.com"))
	directory.AddUser(CreateTestUser("user2", "user2@example.com"))
	return directory
}

// CreateTestUser creates a test user with given parameters
func CreateTestUser(id, email string) models.User {
	return models.User{
		ID:        id,
		Email:     email,
		Name:      "Test User " + id,
		CreatedAt: time.Now(),
	}
}

// NewTestServer builds a server wired to in-memory backends. Session
// tokens follow the pattern "tok_<userID>" for the seeded directory users.
func NewTestServer(store storage.Storage, directory identity.Directory) *handlers.Server {
	return handlers.NewServer(handlers.Options{
		Storage:   store,
		Directory: directory,
		Sessions: &auth.StaticSessions{Tokens: map[string]string{
			"tok_user1": "user1",
			"tok_user2": "user2",
		}},
		Mailer: &email.Sender{},

		WebhookSecret: WebhookSecret,
	})
}

// SetupTestData seeds a billing customer and an active entitlement for user1
func SetupTestData(store storage.Storage) error {
	ctx := context.Background()

	if err := store.SaveBillingCustomer(ctx, &models.BillingCustomer{
		UserID:           "user1",
		StripeCustomerID: "cus_user1",
		CreatedAt:        time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to save billing customer: %w", err)
	}

	if err := store.UpsertEntitlementState(ctx, &models.EntitlementState{
		UserID:           "user1",
		Status:           models.StatusActive,
		StripeCustomerID: "cus_user1",
		UpdatedAt:        time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to seed entitlement state: %w", err)
	}

	return nil
}

// SignPayload produces a valid Stripe-Signature header for the payload:
// HMAC-SHA256 over "<timestamp>.<raw body>" with the shared secret.
func SignPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// CheckoutCompletedEvent creates a checkout.session.completed payload
func CheckoutCompletedEvent(customerID, customerEmail string, metadata map[string]string) []byte {
	object := map[string]interface{}{
		"id":           "cs_test123",
		"customer":     customerID,
		"subscription": "sub_test123",
		"customer_details": map[string]interface{}{
			"email": customerEmail,
		},
	}
	if metadata != nil {
		object["metadata"] = metadata
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"id":          "evt_checkout",
		"type":        "checkout.session.completed",
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": object},
	})
	return payload
}

// SubscriptionEvent creates a customer.subscription.* payload with a single
// subscription item carrying the price and billing period.
func SubscriptionEvent(eventType, customerID, subStatus string, periodEnd int64) []byte {
	object := map[string]interface{}{
		"id":       "sub_test123",
		"customer": customerID,
		"status":   subStatus,
		"items": map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{
					"id":                   "si_test123",
					"price":                map[string]interface{}{"id": "price_test123"},
					"current_period_start": periodEnd - 2592000,
					"current_period_end":   periodEnd,
				},
			},
		},
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"id":          "evt_sub",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]interface{}{"object": object},
	})
	return payload
}

// DeliverWebhook signs and sends a webhook payload through the full router
func DeliverWebhook(t *testing.T, server *handlers.Server, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", SignPayload(payload, WebhookSecret))

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

// GetWithToken sends an authenticated GET through the full router
func GetWithToken(t *testing.T, server *handlers.Server, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

// AssertSubscriptionStatus checks the reconciliation read response
func AssertSubscriptionStatus(t *testing.T, w *httptest.ResponseRecorder, expectedStatus models.Status, expectedActive bool) {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response handlers.SubscriptionStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.SubscriptionStatus != expectedStatus {
		t.Errorf("Expected subscription_status '%s', got '%s'", expectedStatus, response.SubscriptionStatus)
	}
	if response.IsActive != expectedActive {
		t.Errorf("Expected is_active=%v, got %v", expectedActive, response.IsActive)
	}
}

// AssertErrorResponse checks an error response body against the expected
// status code and error message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	if w.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if response["error"] != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, response["error"])
	}
}
