package entitlement

import (
	"context"
	"fmt"
	"time"

	"studyplan.app/cloud/models"
	"studyplan.app/cloud/storage"
)

// Snapshot is the composed entitlement view returned to the access gate:
// current status from the state record, billing period from the latest
// history row.
type Snapshot struct {
	Status           models.Status
	StripeCustomerID string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
}

func (s *Snapshot) IsActive() bool {
	return s.Status == models.StatusActive
}

// Reader answers "is this user entitled right now". A user with no state
// record is a valid empty state (inactive), not an error; only lookup
// failures are surfaced, so callers can tell "confirmed not entitled" from
// "could not determine entitlement".
type Reader struct {
	Storage storage.Storage
}

func NewReader(store storage.Storage) *Reader {
	return &Reader{Storage: store}
}

// Current performs two independent reads without a transactional snapshot.
// A webhook committing between them can produce a momentarily inconsistent
// pair; callers poll, so the view converges.
func (r *Reader) Current(ctx context.Context, userID string) (*Snapshot, error) {
	state, err := r.Storage.GetEntitlementState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement state: %w", err)
	}

	latest, err := r.Storage.LatestEntitlementEvent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement history: %w", err)
	}

	snapshot := &Snapshot{
		Status: models.StatusInactive,
	}

	if state != nil {
		snapshot.Status = state.Status
		snapshot.StripeCustomerID = state.StripeCustomerID
	}

	if latest != nil {
		snapshot.PeriodStart = latest.PeriodStart
		snapshot.PeriodEnd = latest.PeriodEnd
	}

	return snapshot, nil
}
