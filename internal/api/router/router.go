package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/microagenda/platform/internal/agendapost"
	"github.com/microagenda/platform/internal/appointments"
	"github.com/microagenda/platform/internal/availability"
	"github.com/microagenda/platform/internal/billing"
	"github.com/microagenda/platform/internal/clientnotes"
	httpmiddleware "github.com/microagenda/platform/internal/http/middleware"
	"github.com/microagenda/platform/internal/profiles"
	"github.com/microagenda/platform/internal/services"
	"github.com/microagenda/platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	PublicHandler       *availability.PublicHandler
	AvailabilityHandler *availability.Handler
	AppointmentsHandler *appointments.Handler
	ServicesHandler     *services.Handler
	ProfilesHandler     *profiles.Handler
	ClientNotesHandler  *clientnotes.Handler
	AgendaPostHandler   *agendapost.Handler
	BillingHandler      *billing.Handler
	StripeWebhook       *billing.StripeWebhookHandler
	MercadoPagoWebhook  *billing.MercadoPagoWebhookHandler
	MetricsHandler      http.Handler

	DashboardJWTSecret string
	CORSAllowedOrigins []string
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

	// Public endpoints (booking pages, webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)

		if cfg.PublicHandler != nil {
			public.Route("/public/{slug}", func(r chi.Router) {
				r.Get("/slots", cfg.PublicHandler.Slots)
				r.Post("/appointments", cfg.PublicHandler.Book)
			})
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
		if cfg.MercadoPagoWebhook != nil {
			public.Post("/webhooks/mercadopago", cfg.MercadoPagoWebhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Dashboard routes (protected by the professional's session token)
	r.Route("/dashboard", func(dash chi.Router) {
		dash.Use(httpmiddleware.DashboardAuth(cfg.DashboardJWTSecret))

		if cfg.AppointmentsHandler != nil {
			dash.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Patch("/{appointmentID}/status", cfg.AppointmentsHandler.UpdateStatus)
				r.Post("/reconcile", cfg.AppointmentsHandler.Reconcile)
			})
		}
		if cfg.ServicesHandler != nil {
			dash.Route("/services", func(r chi.Router) {
				r.Get("/", cfg.ServicesHandler.List)
				r.Post("/", cfg.ServicesHandler.Create)
				r.Put("/{serviceID}", cfg.ServicesHandler.Update)
				r.Delete("/{serviceID}", cfg.ServicesHandler.Deactivate)
			})
		}
		if cfg.AvailabilityHandler != nil {
			dash.Route("/availability", func(r chi.Router) {
				r.Get("/", cfg.AvailabilityHandler.Week)
				r.Put("/{weekday}", cfg.AvailabilityHandler.ReplaceWeekday)
			})
			dash.Route("/blocked-dates", func(r chi.Router) {
				r.Get("/", cfg.AvailabilityHandler.ListBlockedRanges)
				r.Post("/", cfg.AvailabilityHandler.AddBlockedRange)
				r.Delete("/{rangeID}", cfg.AvailabilityHandler.RemoveBlockedRange)
			})
		}
		if cfg.ProfilesHandler != nil {
			dash.Route("/profile", func(r chi.Router) {
				r.Get("/", cfg.ProfilesHandler.Me)
				r.Patch("/auto-confirm", cfg.ProfilesHandler.SetAutoConfirm)
			})
			dash.Route("/settings", func(r chi.Router) {
				r.Get("/", cfg.ProfilesHandler.GetSettings)
				r.Put("/", cfg.ProfilesHandler.UpdateSettings)
			})
		}
		if cfg.ClientNotesHandler != nil {
			dash.Route("/clients/{phone}/notes", func(r chi.Router) {
				r.Get("/", cfg.ClientNotesHandler.List)
				r.Post("/", cfg.ClientNotesHandler.Add)
			})
			dash.Delete("/notes/{noteID}", cfg.ClientNotesHandler.Delete)
		}
		if cfg.AgendaPostHandler != nil {
			dash.Get("/agenda-post", cfg.AgendaPostHandler.Render)
		}
		if cfg.BillingHandler != nil {
			dash.Route("/billing", func(r chi.Router) {
				r.Get("/subscription", cfg.BillingHandler.Subscription)
				r.Get("/payments", cfg.BillingHandler.Payments)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
