package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studyplan.app/cloud/identity"
	"studyplan.app/cloud/storage"
)

func postWithToken(server *Server, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

func TestCreateCheckoutSession_MissingToken(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := postWithToken(server, "/api/v1/billing/checkout", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestCreateCheckoutSession_NoPriceConfigured(t *testing.T) {
	// test server has no configured price and the request carries none
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := postWithToken(server, "/api/v1/billing/checkout", "tok_user1", "{}")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestCreatePortalSession_NoBillingCustomer(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := postWithToken(server, "/api/v1/billing/portal", "tok_user1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d for user without billing record, got %d", http.StatusNotFound, w.Code)
	}
}

func TestCreatePortalSession_MissingToken(t *testing.T) {
	server := newTestServer(storage.NewMemoryStorage(), identity.NewMemoryDirectory())

	w := postWithToken(server, "/api/v1/billing/portal", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}
