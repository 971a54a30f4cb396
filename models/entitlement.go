package models

import "time"

// Status is the local subscription status derived from billing events.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusInactive Status = "inactive"

	// StatusError is synthetic: it is returned to callers when entitlement
	// could not be determined. It is never written to the store.
	StatusError Status = "error"
)

// EntitlementState is the current-state record used for access decisions.
// At most one row exists per user; writes are whole-row upserts.
type EntitlementState struct {
	UserID           string
	Status           Status
	StripeCustomerID string
	UpdatedAt        time.Time
}

// EntitlementEvent is one row of the append-only history ledger. Rows are
// never updated or deleted. Duplicate webhook deliveries may produce
// duplicate rows; the ledger is not deduplicated.
type EntitlementEvent struct {
	ID                     string
	UserID                 string
	ExternalSubscriptionID string
	PriceID                string
	Status                 Status
	PeriodStart            *time.Time
	PeriodEnd              *time.Time
	ReceivedAt             time.Time
}
