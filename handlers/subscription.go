package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyplan.app/cloud/internal/auth"
	"studyplan.app/cloud/internal/logger"
	"studyplan.app/cloud/models"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDFromContext returns the session user placed by WithSession.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// WithSession resolves the bearer token to a user id. Session issuance is
// owned by the identity service; failures talking to it are 503, not 401,
// so clients can retry instead of logging out.
func (s *Server) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.Sessions.UserIDForToken(r.Context(), token)
		if errors.Is(err, auth.ErrInvalidSession) {
			writeErrorResponse(w, http.StatusUnauthorized, "invalid session")
			return
		}
		if err != nil {
			logger.Error("Session validation failed", map[string]interface{}{
				"error": err.Error(),
			})
			writeErrorResponse(w, http.StatusServiceUnavailable, "session validation unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubscriptionStatusResponse is returned for both success and failure. The
// shapes are deliberately identical so the frontend gate branches only on
// subscription_status == "error".
type SubscriptionStatusResponse struct {
	SubscriptionStatus models.Status `json:"subscription_status"`
	StripeCustomerID   string        `json:"stripe_customer_id"`
	CurrentPeriodStart *time.Time    `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time    `json:"current_period_end"`
	IsActive           bool          `json:"is_active"`
	Error              string        `json:"error,omitempty"`
}

// SubscriptionStatus is the reconciliation read endpoint. A user with no
// entitlement record gets a 200 inactive response; only lookup failures
// produce the error status, so the gate can tell "not entitled" from
// "could not determine".
func (s *Server) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "missing session")
		return
	}

	snapshot, err := s.Reader.Current(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to read entitlement", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		writeJSON(w, http.StatusInternalServerError, SubscriptionStatusResponse{
			SubscriptionStatus: models.StatusError,
			IsActive:           false,
			Error:              "failed to load subscription status",
		})
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionStatusResponse{
		SubscriptionStatus: snapshot.Status,
		StripeCustomerID:   snapshot.StripeCustomerID,
		CurrentPeriodStart: snapshot.PeriodStart,
		CurrentPeriodEnd:   snapshot.PeriodEnd,
		IsActive:           snapshot.IsActive(),
	})
}

// RequireEntitlement blocks protected routes until an active entitlement is
// confirmed. Transient read failures are 503 rather than a lockout.
func (s *Server) RequireEntitlement(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "missing session")
			return
		}

		snapshot, err := s.Reader.Current(r.Context(), userID)
		if err != nil {
			logger.Error("Entitlement gate read failed", map[string]interface{}{
				"error":   err.Error(),
				"user_id": userID,
			})
			writeErrorResponse(w, http.StatusServiceUnavailable, "could not determine entitlement")
			return
		}

		if !snapshot.IsActive() {
			writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"error":               "active subscription required",
				"subscription_status": snapshot.Status,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
