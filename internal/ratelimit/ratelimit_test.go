package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFixedWindowLimiter_AllowsUpToLimit(t *testing.T) {
	rl := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if rl.Allow("10.0.0.1") {
		t.Errorf("Request over the limit should be denied")
	}
}

func TestFixedWindowLimiter_SeparateAddresses(t *testing.T) {
	rl := New(1, time.Minute)

	if !rl.Allow("10.0.0.1") {
		t.Errorf("First address should be allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Errorf("Second address should be allowed independently")
	}
	if rl.Allow("10.0.0.1") {
		t.Errorf("First address should now be over its limit")
	}
}

func TestFixedWindowLimiter_WindowReset(t *testing.T) {
	rl := New(1, 10*time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Errorf("First request should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Errorf("Second request in window should be denied")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Errorf("Request after window elapsed should be allowed")
	}
}

func TestFixedWindowLimiter_ZeroLimit(t *testing.T) {
	rl := New(0, time.Minute)

	if rl.Allow("10.0.0.1") {
		t.Errorf("Zero limit should deny everything")
	}
}

func TestMiddleware_Returns429OverLimit(t *testing.T) {
	rl := New(1, time.Minute)
	handler := Middleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("First request should pass, got %d", w.Code)
	}

	// same host, different port: still one window
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.1:5001"

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status %d, got %d", http.StatusTooManyRequests, w2.Code)
	}
}
