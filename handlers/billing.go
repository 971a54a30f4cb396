package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"

	"studyplan.app/cloud/internal/logger"
)

type CheckoutRequest struct {
	PriceID string `json:"price_id"`
}

type SessionURLResponse struct {
	URL string `json:"url"`
}

// CreateCheckoutSession asks Stripe for a hosted checkout URL. The session
// carries the local user id in metadata so the webhook can bind the Stripe
// customer without an email search.
func (s *Server) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "missing session")
		return
	}

	var req CheckoutRequest
	if r.Body != nil {
		// body is optional; the configured price is the default
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	priceID := req.PriceID
	if priceID == "" {
		priceID = s.priceID
	}
	if priceID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "no price configured")
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("user_id", userID)

	session, err := checkoutsession.New(params)
	if err != nil {
		logger.Error("Failed to create checkout session", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, SessionURLResponse{URL: session.URL})
}

// CreatePortalSession returns a Stripe billing-portal URL for an existing
// billing customer. Payment methods, invoices, and cancellation all live in
// the provider's hosted portal, not here.
func (s *Server) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "missing session")
		return
	}

	state, err := s.Storage.GetEntitlementState(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to load entitlement state", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load billing record")
		return
	}
	if state == nil || state.StripeCustomerID == "" {
		writeErrorResponse(w, http.StatusNotFound, "no billing customer for user")
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(state.StripeCustomerID),
		ReturnURL: stripe.String(s.returnURL),
	}

	session, err := portalsession.New(params)
	if err != nil {
		logger.Error("Failed to create portal session", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		writeErrorResponse(w, http.StatusInternalServerError, "failed to create portal session")
		return
	}

	writeJSON(w, http.StatusOK, SessionURLResponse{URL: session.URL})
}
