package main

import (
	"os"
	"strconv"
	"time"
)

// AppConfig is everything the service reads from the environment. Loaded
// once at startup; read-only afterwards.
type AppConfig struct {
	Port    string
	Env     string // development | production
	APIKey  string
	BaseURL string
	Model   string

	TemplatesDir string

	CallTimeout         time.Duration
	MaxRetries          int
	RetryBaseDelay      time.Duration
	SegmentConcurrency  int
	SequentialThreshold int
	RouteDeadline       time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
}

func LoadConfig() *AppConfig {
	return &AppConfig{
		Port:                getEnv("PORT", "8090"),
		Env:                 getEnv("APP_ENV", "production"),
		APIKey:              os.Getenv("OPENROUTER_API_KEY"),
		BaseURL:             getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		Model:               getEnv("MODEL_NAME", "deepseek/deepseek-chat-v3-0324"),
		TemplatesDir:        getEnv("TEMPLATES_DIR", "templates"),
		CallTimeout:         getEnvSeconds("AI_CALL_TIMEOUT_SECONDS", 60),
		MaxRetries:          getEnvInt("AI_MAX_RETRIES", 2),
		RetryBaseDelay:      getEnvSeconds("AI_RETRY_BASE_DELAY_SECONDS", 1),
		SegmentConcurrency:  getEnvInt("SEGMENT_CONCURRENCY", 2),
		SequentialThreshold: getEnvInt("SEQUENTIAL_THRESHOLD", 6),
		RouteDeadline:       getEnvSeconds("ROUTE_DEADLINE_SECONDS", 120),
		RateLimitWindow:     getEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMax:        getEnvInt("RATE_LIMIT_MAX", 30),
	}
}

func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
