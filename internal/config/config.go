package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string

	// Dashboard auth
	DashboardJWTSecret string

	// CORS
	CORSAllowedOrigins string

	// Appointment lifecycle tuning
	ConfirmThresholdHours  int
	ArchiveThresholdDays   int
	DefaultServiceDuration time.Duration

	// Reconciler
	ReconcileInterval time.Duration
	ReconcileLockTTL  time.Duration

	// Stripe billing
	StripeWebhookSecret string

	// Mercado Pago billing
	MercadoPagoWebhookSecret string
	MercadoPagoAccessToken   string
	MercadoPagoBaseURL       string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DashboardJWTSecret: getEnv("DASHBOARD_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),

		ConfirmThresholdHours:  getEnvAsInt("CONFIRM_THRESHOLD_HOURS", 2),
		ArchiveThresholdDays:   getEnvAsInt("ARCHIVE_THRESHOLD_DAYS", 7),
		DefaultServiceDuration: getEnvAsDuration("DEFAULT_SERVICE_DURATION", 60*time.Minute),

		ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", 15*time.Minute),
		ReconcileLockTTL:  getEnvAsDuration("RECONCILE_LOCK_TTL", 5*time.Minute),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		MercadoPagoWebhookSecret: getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
		MercadoPagoAccessToken:   getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		MercadoPagoBaseURL:       getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),

		// SendGrid Email Configuration
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "MicroAgenda"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
