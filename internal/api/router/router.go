package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wisrod/chat-platform/internal/http/handlers"
	httpmiddleware "github.com/wisrod/chat-platform/internal/http/middleware"
	"github.com/wisrod/chat-platform/internal/messaging"
	"github.com/wisrod/chat-platform/internal/webchat"
	"github.com/wisrod/chat-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	Messaging          *messaging.Handler
	Webchat            *webchat.Handler
	AdminAgents        *handlers.AdminAgentsHandler
	AdminSessions      *handlers.AdminSessionsHandler
	AdminFAQs          *handlers.AdminFAQsHandler
	AdminIntegrations  *handlers.AdminIntegrationsHandler
	AdminLoans         *handlers.AdminLoansHandler
	AdminMonitoring    *handlers.AdminMonitoringHandler
	AdminNotifications *handlers.AdminNotificationsHandler
	MetricsHandler     http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Webhook rate limiting (requests/sec per IP).
	WebhookRatePerSecond float64
	WebhookRateBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, web chat, health checks)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Messaging != nil {
			public.Route("/messaging", func(r chi.Router) {
				if cfg.WebhookRatePerSecond > 0 {
					r.Use(httpmiddleware.RateLimit(cfg.WebhookRatePerSecond, cfg.WebhookRateBurst))
				}
				r.Post("/twilio/webhook", cfg.Messaging.TwilioWebhook)
			})
		}
		if cfg.Webchat != nil {
			public.Route("/webchat", func(r chi.Router) {
				r.Get("/ws", cfg.Webchat.HandleWebSocket)
				r.Post("/message", cfg.Webchat.HandleMessage)
				r.Get("/history", cfg.Webchat.HandleHistory)
			})
		}
	})

	// Admin routes (protected by HMAC-signed JWT)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.AdminAgents != nil {
				admin.Route("/agents", func(r chi.Router) {
					r.Get("/available", cfg.AdminAgents.FindAvailable)
					r.Get("/{agentID}", cfg.AdminAgents.GetAgent)
					r.Post("/{agentID}/status", cfg.AdminAgents.UpdateStatus)
					r.Post("/{agentID}/auto-assign", cfg.AdminAgents.SetAutoAssign)
					r.Get("/{agentID}/performance", cfg.AdminAgents.GetPerformance)
				})
			}
			if cfg.AdminSessions != nil {
				admin.Route("/sessions", func(r chi.Router) {
					r.Get("/", cfg.AdminSessions.ListSessions)
					r.Get("/{sessionID}", cfg.AdminSessions.GetSession)
					r.Post("/{sessionID}/close", cfg.AdminSessions.CloseSession)
					r.Post("/{sessionID}/message", cfg.AdminSessions.SendMessage)
					r.Post("/{sessionID}/satisfaction", cfg.AdminSessions.SetSatisfaction)
				})
			}
			if cfg.AdminFAQs != nil {
				admin.Route("/faqs", func(r chi.Router) {
					r.Get("/", cfg.AdminFAQs.List)
					r.Post("/", cfg.AdminFAQs.Create)
					r.Put("/{faqID}", cfg.AdminFAQs.Update)
					r.Post("/{faqID}/active", cfg.AdminFAQs.SetActive)
				})
			}
			if cfg.AdminIntegrations != nil {
				admin.Route("/integrations", func(r chi.Router) {
					r.Get("/{platform}", cfg.AdminIntegrations.GetIntegration)
					r.Put("/{platform}", cfg.AdminIntegrations.UpsertIntegration)
					r.Post("/{platform}/verify", cfg.AdminIntegrations.VerifyCredentials)
					r.Get("/{platform}/health", cfg.AdminIntegrations.GetHealth)
				})
			}
			if cfg.AdminLoans != nil {
				admin.Route("/loans", func(r chi.Router) {
					r.Get("/products", cfg.AdminLoans.ListProducts)
					r.Post("/products", cfg.AdminLoans.CreateProduct)
					r.Get("/applications", cfg.AdminLoans.ListApplications)
					r.Post("/applications", cfg.AdminLoans.CreateApplication)
					r.Get("/applications/{applicationID}", cfg.AdminLoans.GetApplication)
					r.Post("/applications/{applicationID}/submit", cfg.AdminLoans.Submit)
					r.Post("/applications/{applicationID}/review", cfg.AdminLoans.Review)
					r.Post("/applications/{applicationID}/decision", cfg.AdminLoans.Decide)
					r.Post("/applications/{applicationID}/disburse", cfg.AdminLoans.Disburse)
				})
			}
			if cfg.AdminNotifications != nil {
				admin.Post("/notifications", cfg.AdminNotifications.Create)
			}
			if cfg.AdminMonitoring != nil {
				admin.Route("/monitoring", func(r chi.Router) {
					r.Get("/events", cfg.AdminMonitoring.ListEvents)
					r.Get("/audit", cfg.AdminMonitoring.GetAuditTrail)
					r.Get("/snapshots", cfg.AdminMonitoring.GetSnapshots)
				})
			}
		})
	}

	return r
}
