package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"studyplan.app/cloud/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{
		db:   db,
		path: path,
	}

	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *SQLiteStorage) FindBillingCustomer(ctx context.Context, stripeCustomerID string) (*models.BillingCustomer, error) {
	query := `SELECT user_id, stripe_customer_id, created_at FROM billing_customers WHERE stripe_customer_id = ?`

	var bc models.BillingCustomer
	err := s.db.QueryRowContext(ctx, query, stripeCustomerID).Scan(
		&bc.UserID,
		&bc.StripeCustomerID,
		&bc.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &bc, nil
}

func (s *SQLiteStorage) SaveBillingCustomer(ctx context.Context, bc *models.BillingCustomer) error {
	query := `INSERT INTO billing_customers (user_id, stripe_customer_id, created_at) VALUES (?, ?, ?)
	          ON CONFLICT(stripe_customer_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, bc.UserID, bc.StripeCustomerID, bc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save billing customer: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) GetEntitlementState(ctx context.Context, userID string) (*models.EntitlementState, error) {
	query := `SELECT user_id, status, stripe_customer_id, updated_at FROM entitlement_states WHERE user_id = ?`

	var state models.EntitlementState
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.UserID,
		&state.Status,
		&state.StripeCustomerID,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

func (s *SQLiteStorage) UpsertEntitlementState(ctx context.Context, state *models.EntitlementState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	query := `INSERT INTO entitlement_states (user_id, status, stripe_customer_id, updated_at) VALUES (?, ?, ?, ?)
	          ON CONFLICT(user_id) DO UPDATE SET
	          status = excluded.status,
	          stripe_customer_id = excluded.stripe_customer_id,
	          updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		state.UserID,
		string(state.Status),
		state.StripeCustomerID,
		state.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert entitlement state: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) AppendEntitlementEvent(ctx context.Context, event *models.EntitlementEvent) error {
	query := `INSERT INTO entitlement_events
	          (id, user_id, external_subscription_id, price_id, status, period_start, period_end, received_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.ExternalSubscriptionID,
		nullString(event.PriceID),
		string(event.Status),
		nullTime(event.PeriodStart),
		nullTime(event.PeriodEnd),
		event.ReceivedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append entitlement event: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) LatestEntitlementEvent(ctx context.Context, userID string) (*models.EntitlementEvent, error) {
	query := `SELECT id, user_id, external_subscription_id, price_id, status, period_start, period_end, received_at
	          FROM entitlement_events WHERE user_id = ? ORDER BY received_at DESC LIMIT 1`

	var (
		event       models.EntitlementEvent
		priceID     sql.NullString
		periodStart sql.NullTime
		periodEnd   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&event.ID,
		&event.UserID,
		&event.ExternalSubscriptionID,
		&priceID,
		&event.Status,
		&periodStart,
		&periodEnd,
		&event.ReceivedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	event.PriceID = priceID.String
	if periodStart.Valid {
		t := periodStart.Time
		event.PeriodStart = &t
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		event.PeriodEnd = &t
	}

	return &event, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
