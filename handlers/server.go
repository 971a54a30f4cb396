package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"studyplan.app/cloud/entitlement"
	"studyplan.app/cloud/identity"
	"studyplan.app/cloud/internal/auth"
	"studyplan.app/cloud/internal/email"
	"studyplan.app/cloud/internal/ratelimit"
	"studyplan.app/cloud/storage"
)

type Options struct {
	Storage   storage.Storage
	Directory identity.Directory
	Sessions  auth.Sessions
	Mailer    *email.Sender

	WebhookSecret      string
	StripePriceID      string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string
}

type Server struct {
	Router   chi.Router
	Storage  storage.Storage
	Resolver *identity.Resolver
	Reader   *entitlement.Reader
	Sessions auth.Sessions
	Mailer   *email.Sender

	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
	returnURL     string
}

func NewServer(opts Options) *Server {
	s := &Server{
		Storage:       opts.Storage,
		Resolver:      identity.NewResolver(opts.Storage, opts.Directory),
		Reader:        entitlement.NewReader(opts.Storage),
		Sessions:      opts.Sessions,
		Mailer:        opts.Mailer,
		webhookSecret: opts.WebhookSecret,
		priceID:       opts.StripePriceID,
		successURL:    opts.CheckoutSuccessURL,
		cancelURL:     opts.CheckoutCancelURL,
		returnURL:     opts.PortalReturnURL,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://studyplan.app", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.Health)

	// Stripe retries on non-2xx; rate limiting the webhook would turn
	// provider retries into a feedback loop.
	r.Post("/api/v1/webhooks/stripe", s.StripeWebhook)

	limiter := ratelimit.New(120, time.Minute)
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter))
		r.Use(s.WithSession)

		r.Get("/api/v1/subscription/status", s.SubscriptionStatus)
		r.Post("/api/v1/billing/checkout", s.CreateCheckoutSession)
		r.Post("/api/v1/billing/portal", s.CreatePortalSession)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireEntitlement)
			r.Get("/api/v1/planner/access", s.PlannerAccess)
		})
	})

	s.Router = r
	return s
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// PlannerAccess is the probe the study-planner UI calls behind the
// entitlement gate. Reaching it at all means the gate passed.
func (s *Server) PlannerAccess(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
