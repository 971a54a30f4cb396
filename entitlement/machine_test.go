package entitlement

import (
	"testing"

	"github.com/stripe/stripe-go/v82"

	"studyplan.app/cloud/models"
)

func TestTransition_CheckoutCompleted(t *testing.T) {
	status := Transition("checkout.session.completed", "")
	if status != models.StatusActive {
		t.Errorf("Expected %s for checkout completion, got %s", models.StatusActive, status)
	}
}

func TestTransition_SubscriptionStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		eventType stripe.EventType
		subStatus stripe.SubscriptionStatus
		expected  models.Status
	}{
		{"updated active", "customer.subscription.updated", stripe.SubscriptionStatusActive, models.StatusActive},
		{"updated trialing", "customer.subscription.updated", stripe.SubscriptionStatusTrialing, models.StatusActive},
		{"updated past_due", "customer.subscription.updated", stripe.SubscriptionStatusPastDue, models.StatusPastDue},
		{"updated unpaid", "customer.subscription.updated", stripe.SubscriptionStatusUnpaid, models.StatusPastDue},
		{"updated canceled", "customer.subscription.updated", stripe.SubscriptionStatusCanceled, models.StatusCanceled},
		{"updated incomplete", "customer.subscription.updated", stripe.SubscriptionStatusIncomplete, models.StatusInactive},
		{"updated paused", "customer.subscription.updated", "paused", models.StatusInactive},
		{"deleted canceled", "customer.subscription.deleted", stripe.SubscriptionStatusCanceled, models.StatusCanceled},
		{"deleted active", "customer.subscription.deleted", stripe.SubscriptionStatusActive, models.StatusActive},
		{"unknown sub status", "customer.subscription.updated", "future_provider_state", models.StatusInactive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status := Transition(tc.eventType, tc.subStatus)
			if status != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, status)
			}
		})
	}
}

func TestTransition_UnknownEventType(t *testing.T) {
	status := Transition("invoice.paid", stripe.SubscriptionStatusActive)
	if status != models.StatusInactive {
		t.Errorf("Expected %s for unknown event type, got %s", models.StatusInactive, status)
	}
}

func TestTransition_NeverProducesErrorStatus(t *testing.T) {
	eventTypes := []stripe.EventType{
		"checkout.session.completed",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"payment_intent.succeeded",
	}
	subStatuses := []stripe.SubscriptionStatus{
		stripe.SubscriptionStatusActive,
		stripe.SubscriptionStatusTrialing,
		stripe.SubscriptionStatusPastDue,
		stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusIncomplete,
		"",
		"garbage",
	}

	for _, eventType := range eventTypes {
		for _, subStatus := range subStatuses {
			status := Transition(eventType, subStatus)
			if status == models.StatusError {
				t.Errorf("Transition(%s, %s) produced the synthetic error status", eventType, subStatus)
			}
		}
	}
}
