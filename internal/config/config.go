package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Prompt    PromptConfig
	Sentiment SentimentConfig
}

type ServerConfig struct {
	Host string
	Port int
	// RateLimitRPS and RateLimitBurst drive the per-IP token bucket.
	RateLimitRPS   int
	RateLimitBurst int
	CORSOrigins    []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret    string
	APIKeyHeader string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type PromptConfig struct {
	// DefaultTemplateName is the system-scoped template cloned into a
	// tenant on its first list call.
	DefaultTemplateName string
	HistoryLimit        int
}

type SentimentConfig struct {
	Enabled      bool
	Model        string
	SummaryTTL   time.Duration
	FetchTimeout time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rateRPS, err := getEnvInt("SERVER_RATE_LIMIT_RPS", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_RATE_LIMIT_RPS: %w", err)
	}

	rateBurst, err := getEnvInt("SERVER_RATE_LIMIT_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_RATE_LIMIT_BURST: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	historyLimit, err := getEnvInt("PROMPT_HISTORY_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid PROMPT_HISTORY_LIMIT: %w", err)
	}

	summaryTTL, err := getEnvDuration("SENTIMENT_SUMMARY_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SENTIMENT_SUMMARY_TTL: %w", err)
	}

	fetchTimeout, err := getEnvDuration("SENTIMENT_FETCH_TIMEOUT", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid SENTIMENT_FETCH_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			RateLimitRPS:   rateRPS,
			RateLimitBurst: rateBurst,
			CORSOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Prompt: PromptConfig{
			DefaultTemplateName: getEnv("PROMPT_DEFAULT_TEMPLATE", "default"),
			HistoryLimit:        historyLimit,
		},
		Sentiment: SentimentConfig{
			Enabled:      getEnv("SENTIMENT_ENABLED", "true") == "true",
			Model:        getEnv("SENTIMENT_MODEL", ""),
			SummaryTTL:   summaryTTL,
			FetchTimeout: fetchTimeout,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
