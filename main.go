package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v82"

	"studyplan.app/cloud/handlers"
	"studyplan.app/cloud/identity"
	"studyplan.app/cloud/internal/auth"
	"studyplan.app/cloud/internal/config"
	"studyplan.app/cloud/internal/email"
	"studyplan.app/cloud/internal/logger"
	"studyplan.app/cloud/storage"
)

var version = "dev"

func main() {
	if versionBytes, err := os.ReadFile("VERSION"); err == nil {
		version = strings.TrimSpace(string(versionBytes))
	}

	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %s", err)
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			log.Fatalf("sentry.Init: %s", err)
		}
	}

	stripe.Key = cfg.StripeSecret

	store, err := storage.NewSQLiteStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("storage: %s", err)
	}
	defer store.Close()

	server := handlers.NewServer(handlers.Options{
		Storage:   store,
		Directory: identity.NewHTTPDirectory(cfg.DirectoryURL, cfg.DirectoryServiceKey),
		Sessions:  auth.NewHTTPSessions(cfg.DirectoryURL, cfg.DirectoryAnonKey),
		Mailer: &email.Sender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		},
		WebhookSecret:      cfg.StripeWebhookSecret,
		StripePriceID:      cfg.StripePriceID,
		CheckoutSuccessURL: cfg.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.CheckoutCancelURL,
		PortalReturnURL:    cfg.PortalReturnURL,
	})

	logger.Info("StudyPlan Cloud API starting", map[string]interface{}{
		"version": version,
		"port":    cfg.Port,
	})

	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router))
}
