package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"studyplan.app/cloud/models"
)

type Storage interface {
	FindBillingCustomer(ctx context.Context, stripeCustomerID string) (*models.BillingCustomer, error)
	SaveBillingCustomer(ctx context.Context, bc *models.BillingCustomer) error

	GetEntitlementState(ctx context.Context, userID string) (*models.EntitlementState, error)
	UpsertEntitlementState(ctx context.Context, state *models.EntitlementState) error

	AppendEntitlementEvent(ctx context.Context, event *models.EntitlementEvent) error
	LatestEntitlementEvent(ctx context.Context, userID string) (*models.EntitlementEvent, error)

	Close() error
}

// MemoryStorage backs tests and local development. Webhook deliveries can
// race for the same user, so all maps share one mutex.
type MemoryStorage struct {
	mu        sync.Mutex
	Customers map[string]models.BillingCustomer // keyed by stripe customer id
	States    map[string]models.EntitlementState
	Events    []models.EntitlementEvent
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Customers: make(map[string]models.BillingCustomer),
		States:    make(map[string]models.EntitlementState),
	}
}

func (m *MemoryStorage) FindBillingCustomer(ctx context.Context, stripeCustomerID string) (*models.BillingCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bc, exists := m.Customers[stripeCustomerID]
	if !exists {
		return nil, nil
	}
	return &bc, nil
}

func (m *MemoryStorage) SaveBillingCustomer(ctx context.Context, bc *models.BillingCustomer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// the first binding for a stripe customer wins, matching the SQLite
	// ON CONFLICT DO NOTHING behavior
	if _, exists := m.Customers[bc.StripeCustomerID]; exists {
		return nil
	}

	m.Customers[bc.StripeCustomerID] = *bc
	return nil
}

func (m *MemoryStorage) GetEntitlementState(ctx context.Context, userID string) (*models.EntitlementState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.States[userID]
	if !exists {
		return nil, nil
	}
	return &state, nil
}

func (m *MemoryStorage) UpsertEntitlementState(ctx context.Context, state *models.EntitlementState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	m.States[state.UserID] = *state
	return nil
}

func (m *MemoryStorage) AppendEntitlementEvent(ctx context.Context, event *models.EntitlementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, *event)
	return nil
}

func (m *MemoryStorage) LatestEntitlementEvent(ctx context.Context, userID string) (*models.EntitlementEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.EntitlementEvent
	for _, event := range m.Events {
		if event.UserID == userID {
			matched = append(matched, event)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})

	latest := matched[0]
	return &latest, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
