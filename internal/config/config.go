// Package config provides configuration for roadmapd.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the roadmapd configuration.
type Config struct {
	// Server settings
	HTTPPort    int
	CORSOrigins []string

	// Database
	DatabaseURL string

	// Model gateway
	Mode         string // llm.ModeMock selects the mock gateway
	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration

	// Pipeline
	// AtomicPipeline wraps a whole roadmap run in one store transaction so
	// either all four phase results commit or none do. When false the
	// pipeline commits progressively after each phase.
	AtomicPipeline bool

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 3000),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173"), ","),
		DatabaseURL:    getEnv("DATABASE_URL", "file:roadmapd.db?cache=shared&mode=rwc"),
		Mode:           getEnv("ROADMAPD_MODE", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-pro-002"),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		AtomicPipeline: getEnvBool("ATOMIC_PIPELINE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
