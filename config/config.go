package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppDebug bool
	LogPath  string
	DBUrl    string
	// Public URLs
	AppBaseURL  string // Used for Stripe success/cancel redirects and email links
	FrontendURL string
	// Sessions
	JWTSecret       string
	SessionTTL      time.Duration
	CookieSecure    bool
	AdminEmails     []string // Promoted to ADMIN once the mailbox is proven
	AutoLoginSecret string
	AutoLoginTTL    time.Duration
	// Password reset links
	PasswordResetTTL time.Duration
	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeProductRocket string
	StripeProductGalaxy string
	// Email (Resend)
	ResendAPIKey   string
	EmailFrom      string
	ContactEmailTo string
	// Redis
	RedisURL      string
	RedisPassword string
	// Rate Limiting Configuration
	RateLimitWindowSeconds   int
	RateLimitGlobalThreshold int
	FailedLoginWindowMinutes int
	FailedLoginBlockMinutes  int
	FailedLoginMaxAttempts   int
}

func LoadConfig() (*Config, error) {
	// Local only; production reads the real environment
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		AppDebug: getEnvBool("APP_DEBUG", false),
		LogPath:  getEnv("LOG_PATH", ""),
		DBUrl:    getEnv("DATABASE_URL", ""),
		// Trim trailing slash to avoid "//onboarding" style URLs
		AppBaseURL:  strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		// Sessions
		JWTSecret:       getEnv("JWT_SECRET", ""),
		SessionTTL:      time.Duration(getEnvInt("SESSION_TTL_HOURS", 24*7)) * time.Hour,
		CookieSecure:    getEnvBool("COOKIE_SECURE", true),
		AdminEmails:     getEnvList("ADMIN_EMAILS"),
		AutoLoginSecret: getEnv("AUTOLOGIN_SECRET", ""),
		AutoLoginTTL:    time.Duration(getEnvInt("AUTOLOGIN_TTL_MINUTES", 60)) * time.Minute,
		// Password reset
		PasswordResetTTL: time.Duration(getEnvInt("PASSWORD_RESET_TTL_MINUTES", 60)) * time.Minute,
		// Stripe
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProductRocket: getEnv("STRIPE_PRODUCT_ROCKET", ""),
		StripeProductGalaxy: getEnv("STRIPE_PRODUCT_GALAXY", ""),
		// Email
		ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "Launchpad <hello@launchpad.design>"),
		ContactEmailTo: getEnv("CONTACT_EMAIL_TO", "hello@launchpad.design"),
		// Redis
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		// Rate Limiting Configuration
		RateLimitWindowSeconds:   getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitGlobalThreshold: getEnvInt("RATE_LIMIT_GLOBAL_THRESHOLD", 100),
		FailedLoginWindowMinutes: getEnvInt("FAILED_LOGIN_WINDOW_MINUTES", 15),
		FailedLoginBlockMinutes:  getEnvInt("FAILED_LOGIN_BLOCK_MINUTES", 15),
		FailedLoginMaxAttempts:   getEnvInt("FAILED_LOGIN_MAX_ATTEMPTS", 5),
	}

	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL is missing. Application may fail to connect.")
	}
	if cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is missing. Sessions cannot be issued.")
	}
	if cfg.AutoLoginSecret == "" {
		// Never fall back to an empty key; reuse the session secret instead
		cfg.AutoLoginSecret = cfg.JWTSecret
	}
	if cfg.StripeWebhookSecret == "" {
		log.Println("WARNING: STRIPE_WEBHOOK_SECRET not configured. Webhooks will be rejected.")
	}
	if cfg.RedisURL == "" {
		log.Println("WARNING: REDIS_URL not configured. Token store and rate limiting will use in-memory fallback.")
	}

	return cfg, nil
}

// IsAdminEmail reports whether email is on the ADMIN_EMAILS allow-list
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool returns a boolean environment variable or fallback if not set/invalid
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable into lower-cased, trimmed entries
func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
