// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/nudge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is populated from environment variables.
type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// API rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// In-memory response cache (status surface)
	CacheEnabled bool

	// Generative text provider
	GenAIAPIKey  string
	GenAIBaseURL string
	GenAIModel   string
	GenAITimeout time.Duration
	GenAIRPM     int

	// Periodic nudge schedule (cron spec; empty disables the in-process
	// scheduler so an external trigger can own the cadence).
	NudgeCron string

	// Retention for read nudge notifications.
	NudgeRetention time.Duration

	// Postgres LISTEN/NOTIFY reactive trigger.
	ListenEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("POSTGRES_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),

		GenAIAPIKey:  envOr("GENAI_API_KEY", ""),
		GenAIBaseURL: envOr("GENAI_BASE_URL", ""),
		GenAIModel:   envOr("GENAI_MODEL", "gpt-4o-mini"),
		GenAITimeout: time.Duration(envInt("GENAI_TIMEOUT_SECONDS", 10)) * time.Second,
		GenAIRPM:     envInt("GENAI_REQUESTS_PER_MINUTE", 60),

		NudgeCron:      nudgeCron(),
		NudgeRetention: time.Duration(envInt("NUDGE_RETENTION_DAYS", 90)) * 24 * time.Hour,

		ListenEnabled: envBool("LISTEN_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasGenAI reports whether a provider key is configured; without one the
// copy generator runs on fallback templates only.
func (c *Config) HasGenAI() bool { return c.GenAIAPIKey != "" }

// nudgeCron honors an explicitly empty NUDGE_CRON: that disables the
// in-process scheduler, so it must not fall back to the default.
func nudgeCron() string {
	if v, ok := os.LookupEnv("NUDGE_CRON"); ok {
		return strings.TrimSpace(v)
	}
	return "0 */6 * * *"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
