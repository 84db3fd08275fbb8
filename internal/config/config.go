package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	// FeedBackend selects the document store: "memory" for the in-process
	// store (dev/test), "postgres" for the pgx-backed store.
	FeedBackend string
	DatabaseURL string
	CORSOrigins string
	// LogDir, when set, tees logs into timestamped files under this
	// directory in addition to stdout.
	LogDir string
	// AutosaveWindow is the debounce quiet period for file writes.
	AutosaveWindow time.Duration
	// AIReplyDelay simulates completion latency in the lorem backend.
	AIReplyDelay time.Duration
	// Debug enables verbose logging and dev-only endpoints.
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		FeedBackend:    getEnv("FEED_BACKEND", "memory"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		LogDir:         getEnv("LOG_DIR", ""),
		AutosaveWindow: getDurationMS("AUTOSAVE_WINDOW_MS", DefaultAutosaveWindow),
		AIReplyDelay:   getDurationMS("AI_REPLY_DELAY_MS", 0),
		// Debug defaults to on outside production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationMS(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
