package models

import "time"

// User is owned by the identity directory. Only the identifier is used
// here; shadow users are provisioned when a paying customer has no account.
type User struct {
	ID        string
	Email     string
	Name      string
	Shadow    bool
	CreatedAt time.Time
}

// BillingCustomer maps a Stripe customer identifier to a local user. Created
// lazily on the first event for an unseen customer, never deleted.
type BillingCustomer struct {
	UserID           string
	StripeCustomerID string
	CreatedAt        time.Time
}
