package config

import (
	"errors"
	"os"
)

type Config struct {
	Port string

	DatabaseURL string

	StripeSecret        string
	StripeWebhookSecret string
	StripePriceID       string

	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string

	// DirectoryURL is the identity service. The anon key validates session
	// tokens; the service key bypasses per-user authorization so the
	// resolver can search and create accounts across users.
	DirectoryURL        string
	DirectoryAnonKey    string
	DirectoryServiceKey string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	SentryDSN string
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	stripeSecret := os.Getenv("STRIPE_SECRET")
	if stripeSecret == "" {
		return nil, errors.New("STRIPE_SECRET environment variable is required")
	}

	stripeWebhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if stripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET environment variable is required")
	}

	directoryURL := os.Getenv("DIRECTORY_URL")
	if directoryURL == "" {
		return nil, errors.New("DIRECTORY_URL environment variable is required")
	}

	directoryServiceKey := os.Getenv("DIRECTORY_SERVICE_KEY")
	if directoryServiceKey == "" {
		return nil, errors.New("DIRECTORY_SERVICE_KEY environment variable is required")
	}

	successURL := os.Getenv("CHECKOUT_SUCCESS_URL")
	if successURL == "" {
		successURL = "https://studyplan.app/billing/success"
	}

	cancelURL := os.Getenv("CHECKOUT_CANCEL_URL")
	if cancelURL == "" {
		cancelURL = "https://studyplan.app/billing/canceled"
	}

	returnURL := os.Getenv("PORTAL_RETURN_URL")
	if returnURL == "" {
		returnURL = "https://studyplan.app/settings/billing"
	}

	emailFrom := os.Getenv("EMAIL_FROM")
	if emailFrom == "" {
		emailFrom = "billing@studyplan.app"
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		StripeSecret:        stripeSecret,
		StripeWebhookSecret: stripeWebhookSecret,
		StripePriceID:       os.Getenv("STRIPE_PRICE_ID"),
		CheckoutSuccessURL:  successURL,
		CheckoutCancelURL:   cancelURL,
		PortalReturnURL:     returnURL,
		DirectoryURL:        directoryURL,
		DirectoryAnonKey:    os.Getenv("DIRECTORY_ANON_KEY"),
		DirectoryServiceKey: directoryServiceKey,
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            os.Getenv("SMTP_PORT"),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		EmailFrom:           emailFrom,
		SentryDSN:           os.Getenv("SENTRY_DSN"),
	}, nil
}
