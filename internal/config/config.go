// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	ServiceName string

	// Session store
	RedisURL string
	RedisTTL time.Duration

	// NATS transport
	NatsURL     string
	NatsSubject string
	NatsTimeout time.Duration

	// HTTP transport
	HTTPAddr string

	// Oracles
	OracleEnabled bool
	OpenAIAPIKey  string
	NLUModel      string
	FollowupModel string
	AnswerModel   string
	OracleTimeout time.Duration

	// Catalog
	CatalogDBPath string
}

// Load reads the configuration from the environment with sensible
// defaults for local development.
func Load() Config {
	return Config{
		ServiceName: getEnv("SERVICE_NAME", "converse"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTTL: getDurationEnv("SESSION_TTL", 30*time.Minute),

		NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		NatsSubject: getEnv("NATS_SUBJECT", "converse.turn"),
		NatsTimeout: getDurationEnv("NATS_TIMEOUT", 30*time.Second),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		OracleEnabled: getBoolEnv("ORACLE_ENABLED", true),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		NLUModel:      getEnv("NLU_MODEL", "gpt-4o-mini"),
		FollowupModel: getEnv("FOLLOWUP_MODEL", ""),
		AnswerModel:   getEnv("ANSWER_MODEL", "gpt-4o"),
		OracleTimeout: getDurationEnv("ORACLE_TIMEOUT", 20*time.Second),

		CatalogDBPath: getEnv("CATALOG_DB_PATH", "data/catalog.db"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
