package entitlement

import (
	"github.com/stripe/stripe-go/v82"

	"studyplan.app/cloud/models"
)

// StatusForSubscription maps a Stripe subscription status to the local
// status enum. Unknown provider statuses map to inactive so that new
// provider states never grant access by accident.
func StatusForSubscription(status stripe.SubscriptionStatus) models.Status {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.StatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return models.StatusCanceled
	default:
		return models.StatusInactive
	}
}

// Transition computes the new local status for a billing event. It is a pure
// function of the event itself: events apply in arrival order and the
// existing state never gates a write, so a redelivered stale event can
// overwrite a newer state.
func Transition(eventType stripe.EventType, subStatus stripe.SubscriptionStatus) models.Status {
	switch eventType {
	case "checkout.session.completed":
		return models.StatusActive
	case "customer.subscription.updated", "customer.subscription.deleted":
		return StatusForSubscription(subStatus)
	default:
		return models.StatusInactive
	}
}
