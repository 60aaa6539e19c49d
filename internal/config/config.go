// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PlanQuotas maps a plan tier to its monthly note limit. A negative limit
// means unlimited.
type PlanQuotas struct {
	Starter    int
	Pro        int
	Enterprise int
}

// Config holds all runtime configuration for the API service.
type Config struct {
	Environment string
	HTTPAddr    string
	LogLevel    string
	ServiceName string

	DatabaseURL string

	JWTSecret            string
	JWTAlgorithm         string
	JWTExpiration        time.Duration
	StripeWebhookSecret  string
	WebhookTolerance     time.Duration
	WebhookRetentionDays int

	Quotas PlanQuotas

	RateLimitRequests int
	RateLimitWindow   time.Duration

	TracingEnabled          bool
	TracingExporterEndpoint string
	TracingExporterProtocol string
	TracingSamplingRatio    float64
}

// Load reads configuration from the environment, optionally seeded from a
// local .env file in non-production environments.
func Load() (Config, error) {
	env := strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	if env == "" {
		env = "development"
	}
	if env != "production" {
		// Missing .env is fine; the environment may already be populated.
		_ = godotenv.Load()
	}

	cfg := Config{
		Environment: env,
		HTTPAddr:    getString("HTTP_ADDR", ":8080"),
		LogLevel:    getString("LOG_LEVEL", "info"),
		ServiceName: getString("SERVICE_NAME", "aidentalnotes"),

		DatabaseURL: getString("DATABASE_URL", "file:aidentalnotes.db?cache=shared"),

		JWTSecret:            strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAlgorithm:         getString("JWT_ALGORITHM", "HS256"),
		JWTExpiration:        time.Duration(getInt("JWT_EXPIRATION_MINUTES", 60)) * time.Minute,
		StripeWebhookSecret:  strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		WebhookTolerance:     time.Duration(getInt("WEBHOOK_TOLERANCE_SECONDS", 300)) * time.Second,
		WebhookRetentionDays: getInt("WEBHOOK_RETENTION_DAYS", 30),

		Quotas: PlanQuotas{
			Starter:    getInt("STARTER_NOTES_LIMIT", 100),
			Pro:        getInt("PRO_NOTES_LIMIT", 500),
			Enterprise: getInt("ENTERPRISE_NOTES_LIMIT", -1),
		},

		RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   time.Duration(getInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		TracingEnabled:          getBool("TRACING_ENABLED", false),
		TracingExporterEndpoint: getString("TRACING_EXPORTER_ENDPOINT", "localhost:4318"),
		TracingExporterProtocol: getString("TRACING_EXPORTER_PROTOCOL", "http"),
		TracingSamplingRatio:    getFloat("TRACING_SAMPLING_RATIO", 1.0),
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool { return c.Environment == "production" }

// LimitForTier resolves the configured monthly note limit for a plan tier.
func (c Config) LimitForTier(tier string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "starter":
		return c.Quotas.Starter, true
	case "pro":
		return c.Quotas.Pro, true
	case "enterprise":
		return c.Quotas.Enterprise, true
	}
	return 0, false
}

func getString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
