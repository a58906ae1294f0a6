package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/microagenda/platform/internal/agendapost"
	"github.com/microagenda/platform/internal/api/router"
	"github.com/microagenda/platform/internal/appointments"
	"github.com/microagenda/platform/internal/availability"
	"github.com/microagenda/platform/internal/billing"
	"github.com/microagenda/platform/internal/clientnotes"
	appconfig "github.com/microagenda/platform/internal/config"
	"github.com/microagenda/platform/internal/events"
	"github.com/microagenda/platform/internal/notify"
	"github.com/microagenda/platform/internal/observability/metrics"
	"github.com/microagenda/platform/internal/profiles"
	"github.com/microagenda/platform/internal/schedule"
	"github.com/microagenda/platform/internal/services"
	"github.com/microagenda/platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting microagenda API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create db pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	// Repositories and stores
	profilesRepo := profiles.NewRepository(pool)
	settingsStore := profiles.NewSettingsStore(redisClient)
	servicesRepo := services.NewRepository(pool)
	appointmentsRepo := appointments.NewRepository(pool)
	availabilityRepo := availability.NewRepository(pool)
	notesRepo := clientnotes.NewRepository(pool)
	billingRepo := billing.NewRepository(pool)
	outboxStore := events.NewOutboxStore(pool)
	processedStore := events.NewProcessedStore(pool)

	// Email notifications drain from the outbox in the background.
	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	notifyService := notify.NewService(sender, profilesRepo, settingsStore, logger)
	deliverer := events.NewDeliverer(outboxStore, notifyService, logger)
	go deliverer.Start(ctx)

	// Handlers
	resolver := availability.NewResolver(availabilityRepo, cfg.DefaultServiceDuration).WithSettings(settingsStore)
	reconciler := appointments.NewReconciler(appointmentsRepo, schedule.Thresholds{
		ConfirmAfter:           time.Duration(cfg.ConfirmThresholdHours) * time.Hour,
		ArchiveAfterDays:       cfg.ArchiveThresholdDays,
		DefaultServiceDuration: cfg.DefaultServiceDuration,
	}, logger)

	publicHandler := availability.NewPublicHandler(
		resolver, profilesRepo, servicesRepo, appointmentsRepo, outboxStore, logger,
	).WithMetrics(bookingMetrics)

	routerCfg := &router.Config{
		Logger:              logger,
		PublicHandler:       publicHandler,
		AvailabilityHandler: availability.NewHandler(availabilityRepo, logger),
		AppointmentsHandler: appointments.NewHandler(appointmentsRepo, reconciler, logger).WithOutbox(outboxStore),
		ServicesHandler:     services.NewHandler(servicesRepo, logger),
		ProfilesHandler:     profiles.NewHandler(profilesRepo, settingsStore, logger),
		ClientNotesHandler:  clientnotes.NewHandler(notesRepo, logger),
		AgendaPostHandler:   agendapost.NewHandler(profilesRepo, settingsStore, resolver, cfg.PublicBaseURL, logger),
		BillingHandler:      billing.NewHandler(billingRepo, logger),
		StripeWebhook: billing.NewStripeWebhookHandler(
			cfg.StripeWebhookSecret, billingRepo, processedStore, outboxStore, logger,
		).WithMetrics(webhookMetrics),
		MercadoPagoWebhook: billing.NewMercadoPagoWebhookHandler(
			cfg.MercadoPagoWebhookSecret, cfg.MercadoPagoAccessToken, cfg.MercadoPagoBaseURL,
			billingRepo, processedStore, outboxStore, logger,
		).WithMetrics(webhookMetrics),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		DashboardJWTSecret: cfg.DashboardJWTSecret,
		CORSAllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
