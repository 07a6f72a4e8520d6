package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	LogDir          string
	// Realtime fan-out; empty runs a single-instance in-process bus
	RedisURL     string
	RedisChannel string
	// Generation webhooks
	WebhookBaseURL   string
	WebhookConfig    string // optional YAML overriding the embedded endpoints
	WebhookTimeout   time.Duration
	StreamingTimeout time.Duration
	SessionIdle      time.Duration
	// Task image storage; empty endpoint serves stored URLs as-is
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		LogDir:          getEnv("LOG_DIR", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisChannel:    getEnv("REDIS_CHANNEL", tablePrefix+"outline_events"),
		WebhookBaseURL:  getEnv("WEBHOOK_BASE_URL", "http://localhost:5678"),
		WebhookConfig:   getEnv("WEBHOOK_CONFIG", ""),
		WebhookTimeout:  time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 600)) * time.Second,
		// Streaming flags are dropped after this long without a completion
		StreamingTimeout: time.Duration(getEnvInt("STREAMING_SAFETY_TIMEOUT_SECONDS", 300)) * time.Second,
		SessionIdle:      time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_SECONDS", 1800)) * time.Second,
		MinioEndpoint:    getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:   getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:      getEnv("MINIO_BUCKET", "task-images"),
		MinioUseSSL:      getEnv("MINIO_USE_SSL", "false") == "true",
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer env var, falling back on missing or bad values
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
