package identity

import (
	"context"
	"fmt"
	"time"

	"studyplan.app/cloud/internal/logger"
	"studyplan.app/cloud/models"
	"studyplan.app/cloud/storage"
)

// MetadataUserIDKey is the checkout metadata key the frontend sets when a
// logged-in user starts checkout, binding the Stripe customer to the account
// without an email search.
const MetadataUserIDKey = "user_id"

// Directory is the identity service that owns user accounts. The resolver
// uses it with elevated credentials since it must act across users.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateShadowUser(ctx context.Context, email string) (*models.User, error)
}

// Resolver maps a Stripe customer identifier to a local user id, creating
// the billing-customer binding (and, if needed, a shadow account) on the
// first event for an unseen customer.
type Resolver struct {
	Storage   storage.Storage
	Directory Directory
}

func NewResolver(store storage.Storage, directory Directory) *Resolver {
	return &Resolver{Storage: store, Directory: directory}
}

// Resolve is idempotent: once a billing-customer binding exists, repeated
// calls short-circuit on the stored mapping regardless of email or metadata.
func (r *Resolver) Resolve(ctx context.Context, stripeCustomerID, email string, metadata map[string]string) (string, error) {
	if stripeCustomerID == "" {
		return "", fmt.Errorf("missing stripe customer id")
	}

	bc, err := r.Storage.FindBillingCustomer(ctx, stripeCustomerID)
	if err != nil {
		return "", fmt.Errorf("billing customer lookup failed: %w", err)
	}
	if bc != nil {
		return bc.UserID, nil
	}

	if userID := metadata[MetadataUserIDKey]; userID != "" {
		logger.Info("Binding stripe customer from checkout metadata", map[string]interface{}{
			"stripe_customer_id": stripeCustomerID,
			"user_id":            userID,
		})
		return r.bind(ctx, userID, stripeCustomerID)
	}

	if email != "" {
		user, err := r.Directory.FindUserByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("directory lookup failed: %w", err)
		}
		if user != nil {
			logger.Info("Binding stripe customer by email match", map[string]interface{}{
				"stripe_customer_id": stripeCustomerID,
				"user_id":            user.ID,
			})
			return r.bind(ctx, user.ID, stripeCustomerID)
		}
	}

	user, err := r.Directory.CreateShadowUser(ctx, email)
	if err != nil {
		return "", fmt.Errorf("shadow user creation failed: %w", err)
	}

	logger.Info("Provisioned shadow user for stripe customer", map[string]interface{}{
		"stripe_customer_id": stripeCustomerID,
		"user_id":            user.ID,
	})

	return r.bind(ctx, user.ID, stripeCustomerID)
}

func (r *Resolver) bind(ctx context.Context, userID, stripeCustomerID string) (string, error) {
	bc := &models.BillingCustomer{
		UserID:           userID,
		StripeCustomerID: stripeCustomerID,
		CreatedAt:        time.Now().UTC(),
	}

	if err := r.Storage.SaveBillingCustomer(ctx, bc); err != nil {
		return "", fmt.Errorf("failed to save billing customer: %w", err)
	}

	return userID, nil
}
