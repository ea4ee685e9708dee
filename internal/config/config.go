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
	LogLevel      string
	PublicBaseURL string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation dispatcher
	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Messaging gateway (outbound sends)
	GatewayBaseURL string
	GatewayToken   string
	WebhookSecret  string

	// Agent API auth
	AgentJWTSecret string

	// Auto-response cache
	AutoResponseCacheTTL time.Duration

	// Flow defaults
	QuotationFlowTimeout time.Duration
	InfoMenuFlowTimeout  time.Duration

	// Manager email alerts
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", ""),
		GatewayToken:   getEnv("GATEWAY_TOKEN", ""),
		WebhookSecret:  getEnv("WEBHOOK_SECRET", ""),

		AgentJWTSecret: getEnv("AGENT_JWT_SECRET", ""),

		AutoResponseCacheTTL: getEnvAsDuration("AUTO_RESPONSE_CACHE_TTL", 5*time.Minute),

		QuotationFlowTimeout: getEnvAsDuration("QUOTATION_FLOW_TIMEOUT", 30*time.Minute),
		InfoMenuFlowTimeout:  getEnvAsDuration("INFO_MENU_FLOW_TIMEOUT", 15*time.Minute),

		EmailProvider:     getEnv("EMAIL_PROVIDER", "none"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Tiendatec"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
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
