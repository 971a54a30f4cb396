package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"studyplan.app/cloud/entitlement"
	"studyplan.app/cloud/internal/logger"
	"studyplan.app/cloud/models"
)

// StripeWebhook ingests billing events. Verification failures never mutate
// state; Stripe's own retry policy governs redelivery, so anything past
// verification is processed exactly as delivered, in arrival order.
func (s *Server) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Only POST allowed")
		return
	}

	logger.Info("Stripe webhook received", map[string]interface{}{
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.Header.Get("User-Agent"),
	})

	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		logger.Error("Missing Stripe-Signature header")
		writeErrorResponse(w, http.StatusBadRequest, "missing signature")
		return
	}

	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		logger.Error("Webhook signature verification failed", map[string]interface{}{
			"error":     err.Error(),
			"signature": signatureHeader,
		})
		writeErrorResponse(w, http.StatusBadRequest, "invalid signature")
		return
	}

	logger.Info("Stripe event verified", map[string]interface{}{
		"event_type": event.Type,
		"event_id":   event.ID,
	})

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			logger.Error("Failed to unmarshal checkout session", map[string]interface{}{
				"error":    err.Error(),
				"event_id": event.ID,
			})
			writeErrorResponse(w, http.StatusBadRequest, "malformed event payload")
			return
		}

		if err := s.handleCheckoutCompleted(ctx, &session); err != nil {
			logger.Error("Failed to handle checkout completion", map[string]interface{}{
				"error":      err.Error(),
				"session_id": session.ID,
			})
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var subscription stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
			logger.Error("Failed to unmarshal subscription", map[string]interface{}{
				"error":    err.Error(),
				"event_id": event.ID,
			})
			writeErrorResponse(w, http.StatusBadRequest, "malformed event payload")
			return
		}

		if err := s.handleSubscriptionEvent(ctx, event.Type, &subscription); err != nil {
			logger.Error("Failed to handle subscription event", map[string]interface{}{
				"error":           err.Error(),
				"event_type":      event.Type,
				"subscription_id": subscription.ID,
			})
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}

	default:
		// Unrecognized events are acknowledged so Stripe does not treat
		// them as delivery failures. No state transition.
		logger.Info("Ignoring unhandled webhook event type", map[string]interface{}{
			"event_type": event.Type,
			"event_id":   event.ID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	customerEmail := checkoutEmail(session)

	var stripeCustomerID string
	if session.Customer != nil {
		stripeCustomerID = session.Customer.ID
	}

	userID, err := s.Resolver.Resolve(ctx, stripeCustomerID, customerEmail, session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to resolve billing customer: %w", err)
	}

	var subscriptionID string
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}

	newStatus := entitlement.Transition("checkout.session.completed", "")

	previous := s.previousStatus(ctx, userID)

	if err := s.applyTransition(ctx, userID, stripeCustomerID, &models.EntitlementEvent{
		UserID:                 userID,
		ExternalSubscriptionID: subscriptionID,
		Status:                 newStatus,
	}); err != nil {
		return err
	}

	if previous != models.StatusActive && customerEmail != "" {
		s.sendActivationEmail(customerEmail)
	}

	return nil
}

func (s *Server) handleSubscriptionEvent(ctx context.Context, eventType stripe.EventType, subscription *stripe.Subscription) error {
	var stripeCustomerID string
	if subscription.Customer != nil {
		stripeCustomerID = subscription.Customer.ID
	}

	userID, err := s.Resolver.Resolve(ctx, stripeCustomerID, "", subscription.Metadata)
	if err != nil {
		return fmt.Errorf("failed to resolve billing customer: %w", err)
	}

	newStatus := entitlement.Transition(eventType, subscription.Status)

	previous := s.previousStatus(ctx, userID)

	event := &models.EntitlementEvent{
		UserID:                 userID,
		ExternalSubscriptionID: subscription.ID,
		Status:                 newStatus,
	}
	event.PriceID, event.PeriodStart, event.PeriodEnd = subscriptionItemFields(subscription)

	if err := s.applyTransition(ctx, userID, stripeCustomerID, event); err != nil {
		return err
	}

	if newStatus == models.StatusPastDue && previous != models.StatusPastDue {
		s.sendPastDueEmail(ctx, userID)
	}

	return nil
}

// applyTransition performs the two writes of a transition. The current-state
// upsert is authoritative and its failure aborts the event; the history
// append is best-effort and its failure is logged and swallowed.
func (s *Server) applyTransition(ctx context.Context, userID, stripeCustomerID string, event *models.EntitlementEvent) error {
	state := &models.EntitlementState{
		UserID:           userID,
		Status:           event.Status,
		StripeCustomerID: stripeCustomerID,
		UpdatedAt:        time.Now().UTC(),
	}

	if err := s.Storage.UpsertEntitlementState(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert entitlement state: %w", err)
	}

	event.ID = uuid.Must(uuid.NewRandom()).String()
	event.ReceivedAt = time.Now().UTC()

	if err := s.Storage.AppendEntitlementEvent(ctx, event); err != nil {
		logger.Error("Failed to append entitlement history", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
			"status":  event.Status,
		})
		// history is best-effort; the current state already committed
		return nil
	}

	logger.Info("Entitlement transition applied", map[string]interface{}{
		"user_id": userID,
		"status":  event.Status,
	})

	return nil
}

func (s *Server) previousStatus(ctx context.Context, userID string) models.Status {
	state, err := s.Storage.GetEntitlementState(ctx, userID)
	if err != nil || state == nil {
		return models.StatusInactive
	}
	return state.Status
}

func (s *Server) sendActivationEmail(to string) {
	body := `Hello,

Your StudyPlan+ subscription is active. All premium features are unlocked:
unlimited subjects, mock-exam analytics, and calendar sync.

Manage your subscription any time from Settings -> Billing.

Happy studying,
The StudyPlan Team`

	if err := s.Mailer.Send(to, "Welcome to StudyPlan+", body); err != nil {
		logger.Error("Failed to send activation email", map[string]interface{}{
			"error": err.Error(),
			"email": to,
		})
	}
}

func (s *Server) sendPastDueEmail(ctx context.Context, userID string) {
	user, err := s.Resolver.Directory.GetUser(ctx, userID)
	if err != nil || user == nil || user.Email == "" {
		logger.Warn("Skipping past-due notice, no address for user", map[string]interface{}{
			"user_id": userID,
		})
		return
	}

	name := "there"
	if user.Name != "" {
		name = strings.Split(user.Name, " ")[0]
	}

	body := fmt.Sprintf(`Hello %s,

We couldn't collect your latest StudyPlan+ payment. Your plan stays usable
while we retry, but please update your payment method from
Settings -> Billing to keep access.

The StudyPlan Team`, name)

	if err := s.Mailer.Send(user.Email, "Action needed: StudyPlan+ payment failed", body); err != nil {
		logger.Error("Failed to send past-due email", map[string]interface{}{
			"error": err.Error(),
			"email": user.Email,
		})
	}
}

func checkoutEmail(session *stripe.CheckoutSession) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	return session.CustomerEmail
}

func subscriptionItemFields(subscription *stripe.Subscription) (priceID string, periodStart, periodEnd *time.Time) {
	if subscription.Items == nil || len(subscription.Items.Data) == 0 {
		return "", nil, nil
	}

	item := subscription.Items.Data[0]
	if item.Price != nil {
		priceID = item.Price.ID
	}
	if item.CurrentPeriodStart > 0 {
		t := time.Unix(item.CurrentPeriodStart, 0).UTC()
		periodStart = &t
	}
	if item.CurrentPeriodEnd > 0 {
		t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	return priceID, periodStart, periodEnd
}
