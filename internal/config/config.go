package config

import (
	"os"
	"strconv"
	"strings"
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
	RedisTLS      bool

	// Twilio (WhatsApp + Facebook Messenger transport)
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	FacebookPageID     string
	TwilioMessagingSID string

	// Instafin core-banking API
	InstafinBaseURL     string
	InstafinAPIUsername string
	InstafinAPIPassword string

	// Conversation behavior
	FAQMatchThreshold   float64
	MenuStateTTL        time.Duration
	MaxTurnsBeforeAgent int

	// Admin API
	AdminJWTSecret string

	// Webhook abuse protection
	WebhookRatePerSecond float64
	WebhookRateBurst     int

	CORSAllowedOrigins []string
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
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		FacebookPageID:     getEnv("FACEBOOK_PAGE_ID", ""),
		TwilioMessagingSID: getEnv("TWILIO_MESSAGING_SERVICE_SID", ""),

		InstafinBaseURL:     getEnv("INSTAFIN_API_BASE_URL", ""),
		InstafinAPIUsername: getEnv("INSTAFIN_API_USERNAME", ""),
		InstafinAPIPassword: getEnv("INSTAFIN_API_PASSWORD", ""),

		FAQMatchThreshold:   getEnvAsFloat("FAQ_MATCH_THRESHOLD", 0.7),
		MenuStateTTL:        getEnvAsDuration("MENU_STATE_TTL", 5*time.Minute),
		MaxTurnsBeforeAgent: getEnvAsInt("MAX_TURNS_BEFORE_AGENT", 10),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		WebhookRatePerSecond: getEnvAsFloat("WEBHOOK_RATE_PER_SECOND", 10),
		WebhookRateBurst:     getEnvAsInt("WEBHOOK_RATE_BURST", 20),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
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
